package match

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shogi_backend/internal/domain/match"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/httpresponse"
	"shogi_backend/internal/kifu"
	"shogi_backend/internal/shogi"
	"shogi_backend/internal/shogi/ai"
	"shogi_backend/internal/utils"
)

// MatchService is the part of the match usecase the handlers drive.
type MatchService interface {
	CreateMatch(ctx context.Context, req match.CreateMatchRequest) (*match.CreateMatchResponse, error)
	JoinMatch(ctx context.Context, key string, req match.JoinRequest) (*match.JoinResponse, error)
	State(ctx context.Context, key string) (*match.State, error)
	Record(ctx context.Context, key string) (*match.Match, shogi.History, error)
	LegalTargets(ctx context.Context, key string, from string, dropKind string) (*match.LegalTargets, error)
	PlayMove(ctx context.Context, key string, req match.MoveRequest) (*match.State, error)
	RequestBotMove(ctx context.Context, key string, req match.BotMoveRequest) (*match.State, error)
	Undo(ctx context.Context, key string, req match.UndoRequest) (*match.State, error)
	Resign(ctx context.Context, key string, req match.ResignRequest) (*match.State, error)
	Archive(ctx context.Context, pageNum int) (*match.ArchivePage, error)
}

type MatchHandler struct {
	log     *zap.SugaredLogger
	matchUC MatchService
	hub     *Hub
}

func NewMatchHandler(log *zap.SugaredLogger, matchUC MatchService) *MatchHandler {
	return &MatchHandler{
		log:     log,
		matchUC: matchUC,
		hub:     NewHub(log),
	}
}

// Routes mounts every match endpoint on r.
func (h *MatchHandler) Routes(r chi.Router) {
	r.Get("/levels", h.HandleLevels)
	r.Get("/archive", h.HandleArchive)
	r.Post("/matches", h.HandleCreateMatch)
	r.Route("/matches/{key}", func(r chi.Router) {
		r.Get("/", h.HandleGetState)
		r.Post("/join", h.HandleJoinMatch)
		r.Get("/legal", h.HandleLegalTargets)
		r.Post("/moves", h.HandlePlayMove)
		r.Post("/bot", h.HandleBotMove)
		r.Post("/undo", h.HandleUndo)
		r.Post("/resign", h.HandleResign)
		r.Get("/ws", h.HandleWS)
		r.Get("/kif", h.HandleKIF)
		r.Get("/pdf", h.HandlePDF)
	})
}

type levelInfo struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

func (h *MatchHandler) HandleLevels(w http.ResponseWriter, r *http.Request) {
	levels := make([]levelInfo, 0, ai.MaxLevel)
	for _, level := range ai.Levels() {
		strategy, _ := ai.StrategyFor(level)
		levels = append(levels, levelInfo{Level: level, Name: strategy.Name, Depth: strategy.Depth})
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, levels)
}

func (h *MatchHandler) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req match.CreateMatchRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.log.Warnw("create match: bad body", "error", err)
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.matchUC.CreateMatch(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusCreated, resp)
}

func (h *MatchHandler) HandleJoinMatch(w http.ResponseWriter, r *http.Request) {
	var req match.JoinRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.matchUC.JoinMatch(r.Context(), chi.URLParam(r, "key"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.hub.Broadcast(resp.State)
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, resp)
}

func (h *MatchHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.matchUC.State(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, state)
}

// HandleLegalTargets answers ?from=7g or ?drop=pawn.
func (h *MatchHandler) HandleLegalTargets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	targets, err := h.matchUC.LegalTargets(r.Context(), chi.URLParam(r, "key"), query.Get("from"), query.Get("drop"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, targets)
}

func (h *MatchHandler) HandlePlayMove(w http.ResponseWriter, r *http.Request) {
	var req match.MoveRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondState(w, r, func(ctx context.Context, key string) (*match.State, error) {
		return h.matchUC.PlayMove(ctx, key, req)
	})
}

func (h *MatchHandler) HandleBotMove(w http.ResponseWriter, r *http.Request) {
	var req match.BotMoveRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondState(w, r, func(ctx context.Context, key string) (*match.State, error) {
		return h.matchUC.RequestBotMove(ctx, key, req)
	})
}

func (h *MatchHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	var req match.UndoRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondState(w, r, func(ctx context.Context, key string) (*match.State, error) {
		return h.matchUC.Undo(ctx, key, req)
	})
}

func (h *MatchHandler) HandleResign(w http.ResponseWriter, r *http.Request) {
	var req match.ResignRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondState(w, r, func(ctx context.Context, key string) (*match.State, error) {
		return h.matchUC.Resign(ctx, key, req)
	})
}

func (h *MatchHandler) respondState(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, key string) (*match.State, error)) {
	state, err := do(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.hub.Broadcast(state)
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, state)
}

func (h *MatchHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	pageNum, err := utils.QueryInt(r, "page", 1)
	if err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.matchUC.Archive(r.Context(), pageNum)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, page)
}

// HandleKIF serves the record as KIF, in Shift-JIS unless ?charset=utf-8.
func (h *MatchHandler) HandleKIF(w http.ResponseWriter, r *http.Request) {
	play, history, err := h.matchUC.Record(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", play.KeyPublic+".kif"))
	if r.URL.Query().Get("charset") == "utf-8" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = kifu.Encode(w, kifu.HeaderOf(play), history)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=Shift_JIS")
		err = kifu.EncodeShiftJIS(w, kifu.HeaderOf(play), history)
	}
	if err != nil {
		h.log.Errorf("write KIF for match %s: %v", play.KeyPublic, err)
	}
}

func (h *MatchHandler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	play, history, err := h.matchUC.Record(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", play.KeyPublic+".pdf"))
	if err = kifu.WritePDF(w, kifu.HeaderOf(play), history); err != nil {
		h.log.Errorf("write PDF for match %s: %v", play.KeyPublic, err)
	}
}

// statusOf maps usecase and engine errors to HTTP codes. Unknown errors are
// internal.
func statusOf(err error) int {
	var moveErr *shogi.MoveError
	switch {
	case errors.Is(err, errs.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotYourTurn),
		errors.Is(err, errs.ErrMatchFinished),
		errors.Is(err, errs.ErrMatchNotStarted),
		errors.Is(err, errs.ErrSideTaken),
		errors.Is(err, errs.ErrNothingToUndo):
		return http.StatusConflict
	case errors.Is(err, errs.ErrBotUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &moveErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *MatchHandler) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Errorf("match request failed: %v", err)
		httpresponse.WriteInternalErrorResponse(w)
		return
	}
	h.log.Infow("match request rejected", "status", status, "error", err)
	httpresponse.WriteErrorResponse(w, status, err.Error())
}

package puzzle

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shogi_backend/internal/domain/puzzle"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/httpresponse"
	"shogi_backend/internal/shogi"
	"shogi_backend/internal/utils"
)

type PuzzleService interface {
	Page(ctx context.Context, playerID string, level int, pageNum int) (*puzzle.Page, error)
	Get(ctx context.Context, number int) (*puzzle.Puzzle, error)
	Solve(ctx context.Context, number int, req puzzle.SolveRequest) (*puzzle.SolveResponse, error)
}

type PuzzleHandler struct {
	log      *zap.SugaredLogger
	puzzleUC PuzzleService
}

func NewPuzzleHandler(log *zap.SugaredLogger, puzzleUC PuzzleService) *PuzzleHandler {
	return &PuzzleHandler{
		log:      log,
		puzzleUC: puzzleUC,
	}
}

func (h *PuzzleHandler) Routes(r chi.Router) {
	r.Get("/puzzles", h.HandleListPuzzles)
	r.Get("/puzzles/{number}", h.HandleGetPuzzle)
	r.Post("/puzzles/{number}/solve", h.HandleSolve)
}

// HandleListPuzzles serves ?level=&page=&player_id=.
func (h *PuzzleHandler) HandleListPuzzles(w http.ResponseWriter, r *http.Request) {
	level, err := utils.QueryInt(r, "level", 1)
	if err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	pageNum, err := utils.QueryInt(r, "page", 1)
	if err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.puzzleUC.Page(r.Context(), r.URL.Query().Get("player_id"), level, pageNum)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, page)
}

func (h *PuzzleHandler) HandleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, "puzzle number must be an integer")
		return
	}
	pz, err := h.puzzleUC.Get(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, pz)
}

func (h *PuzzleHandler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, "puzzle number must be an integer")
		return
	}
	var req puzzle.SolveRequest
	if err = utils.DecodeJSONRequest(r, &req); err != nil {
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.puzzleUC.Solve(r.Context(), number, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, resp)
}

func (h *PuzzleHandler) writeError(w http.ResponseWriter, err error) {
	var moveErr *shogi.MoveError
	switch {
	case errors.Is(err, errs.ErrPuzzleNotFound):
		httpresponse.WriteErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrBadRequest):
		httpresponse.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &moveErr):
		httpresponse.WriteErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Errorf("puzzle request failed: %v", err)
		httpresponse.WriteInternalErrorResponse(w)
	}
}

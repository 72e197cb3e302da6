package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shogi_backend/internal/bootstrap"
	"shogi_backend/internal/domain/match"
	errs "shogi_backend/internal/errors"
	"shogi_backend/internal/shogi"
	"shogi_backend/internal/shogi/ai"
)

type MatchStore interface {
	GenerateMatchKeys(ctx context.Context) (keySecret string, keyPublic string, err error)
	CreateMatch(ctx context.Context, play *match.Match) error
	GetMatch(ctx context.Context, key string) (*match.Match, error)
	SaveMatch(ctx context.Context, play *match.Match) error
	ListFinished(ctx context.Context, pageNum int, pageLimit int) ([]match.Match, int64, error)
}

// BotMover picks a move in USI notation for the side to move in sfen.
type BotMover interface {
	BestMove(ctx context.Context, sfen string, level int) (string, error)
}

type MatchUseCase struct {
	store        MatchStore
	bot          BotMover
	log          *zap.SugaredLogger
	defaultLevel int
	pageLimit    int
	botTimeout   time.Duration
	now          func() time.Time

	// locks serialises mutations per secret key.
	locks sync.Map
}

func NewMatchUseCase(cfg *bootstrap.Config, log *zap.SugaredLogger, store MatchStore, bot BotMover) *MatchUseCase {
	return &MatchUseCase{
		store:        store,
		bot:          bot,
		log:          log,
		defaultLevel: cfg.DefaultBotLevel,
		pageLimit:    cfg.PageLimitGames,
		botTimeout:   cfg.BotTimeout(),
		now:          time.Now,
	}
}

func (u *MatchUseCase) lock(key string) func() {
	value, _ := u.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrBadRequest, fmt.Sprintf(format, args...))
}

func (u *MatchUseCase) CreateMatch(ctx context.Context, req match.CreateMatchRequest) (*match.CreateMatchResponse, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return nil, badRequest("player_id is required")
	}
	if req.PlayerID == match.BotPlayerID {
		return nil, badRequest("player_id %q is reserved", match.BotPlayerID)
	}

	opponent := req.Opponent
	if opponent == "" {
		opponent = match.OpponentHuman
	}
	if opponent != match.OpponentHuman && opponent != match.OpponentBot {
		return nil, badRequest("unknown opponent %q", req.Opponent)
	}

	side := shogi.Sente
	if req.Side != "" {
		parsed, err := shogi.ParseSide(req.Side)
		if err != nil {
			return nil, badRequest("%v", err)
		}
		side = parsed
	}

	level := 0
	if opponent == match.OpponentBot {
		level = req.Level
		if level == 0 {
			level = u.defaultLevel
		}
		if _, err := ai.StrategyFor(level); err != nil {
			return nil, badRequest("%v", err)
		}
	}

	keySecret, keyPublic, err := u.store.GenerateMatchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCreateMatchFailed, err)
	}

	now := u.now()
	play := &match.Match{
		KeySecret: keySecret,
		KeyPublic: keyPublic,
		Status:    match.StatusWaitOpponent,
		Opponent:  opponent,
		BotLevel:  level,
		Moves:     []shogi.MoveRecord{},
		CreatedAt: now,
	}
	if side == shogi.Sente {
		play.PlayerSente = req.PlayerID
	} else {
		play.PlayerGote = req.PlayerID
	}
	if opponent == match.OpponentBot {
		if side == shogi.Sente {
			play.PlayerGote = match.BotPlayerID
		} else {
			play.PlayerSente = match.BotPlayerID
		}
		play.Status = match.StatusActive
		play.StartedAt = now
	}

	if err = u.store.CreateMatch(ctx, play); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCreateMatchFailed, err)
	}
	u.log.Infof("match %s created by %s (%s, level %d)", keyPublic, req.PlayerID, opponent, level)

	unlock := u.lock(keySecret)
	defer unlock()

	b, h, err := play.Replay()
	if err != nil {
		return nil, err
	}
	if play.IsBot(b.Turn()) {
		b, h = u.botReply(ctx, play, b, h)
	}

	return &match.CreateMatchResponse{
		KeySecret: keySecret,
		KeyPublic: keyPublic,
		State:     buildState(play, b, h),
	}, nil
}

// JoinMatch seats playerID on the free side of a human match. Joining a match
// the player already sits in just returns it.
func (u *MatchUseCase) JoinMatch(ctx context.Context, key string, req match.JoinRequest) (*match.JoinResponse, error) {
	if strings.TrimSpace(req.PlayerID) == "" || req.PlayerID == match.BotPlayerID {
		return nil, badRequest("player_id is required")
	}

	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock := u.lock(play.KeySecret)
	defer unlock()

	play, err = u.store.GetMatch(ctx, play.KeySecret)
	if err != nil {
		return nil, err
	}

	side, seated := play.SideOf(req.PlayerID)
	if !seated {
		switch {
		case play.Status != match.StatusWaitOpponent:
			return nil, errs.ErrSideTaken
		case play.PlayerSente == "":
			play.PlayerSente = req.PlayerID
			side = shogi.Sente
		default:
			play.PlayerGote = req.PlayerID
			side = shogi.Gote
		}
		play.Status = match.StatusActive
		play.StartedAt = u.now()
		if err = u.store.SaveMatch(ctx, play); err != nil {
			return nil, err
		}
		u.log.Infof("player %s joined match %s as %s", req.PlayerID, play.KeyPublic, side)
	}

	b, h, err := play.Replay()
	if err != nil {
		return nil, err
	}
	return &match.JoinResponse{
		KeySecret: play.KeySecret,
		Side:      side.String(),
		State:     buildState(play, b, h),
	}, nil
}

func (u *MatchUseCase) State(ctx context.Context, key string) (*match.State, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}
	b, h, err := play.Replay()
	if err != nil {
		return nil, err
	}
	return buildState(play, b, h), nil
}

// Record returns the match together with its replayed history.
func (u *MatchUseCase) Record(ctx context.Context, key string) (*match.Match, shogi.History, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	_, h, err := play.Replay()
	if err != nil {
		return nil, nil, err
	}
	return play, h, nil
}

// LegalTargets previews the legal destinations of the piece on from, or of a
// drop of dropKind by the side to move. It uses the same rules as PlayMove.
func (u *MatchUseCase) LegalTargets(ctx context.Context, key string, from string, dropKind string) (*match.LegalTargets, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}
	b, _, err := play.Replay()
	if err != nil {
		return nil, err
	}

	out := &match.LegalTargets{Targets: []string{}}
	switch {
	case dropKind != "":
		kind, err := shogi.ParsePieceKind(dropKind)
		if err != nil {
			return nil, err
		}
		out.Drop = kind.String()
		for _, to := range shogi.LegalDrops(b, kind, b.Turn()) {
			out.Targets = append(out.Targets, to.String())
		}
	case from != "":
		pos, err := shogi.ParsePosition(from)
		if err != nil {
			return nil, err
		}
		out.From = pos.String()
		piece, ok := b.PieceAt(pos)
		if !ok {
			return out, nil
		}
		for _, to := range shogi.LegalMoves(b, pos) {
			out.Targets = append(out.Targets, to.String())
			switch {
			case shogi.IsForcedPromotion(piece, to.Row):
				out.Forced = append(out.Forced, to.String())
			case shogi.CanPromote(piece, pos.Row, to.Row):
				out.Promotable = append(out.Promotable, to.String())
			}
		}
	default:
		return nil, badRequest("either from or drop is required")
	}
	return out, nil
}

// PlayMove applies the player's move and, in a bot match, the bot's reply.
// A failed bot reply leaves the match waiting for RequestBotMove.
func (u *MatchUseCase) PlayMove(ctx context.Context, key string, req match.MoveRequest) (*match.State, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock := u.lock(play.KeySecret)
	defer unlock()

	play, side, err := u.loadForPlayer(ctx, play.KeySecret, req.PlayerID)
	if err != nil {
		return nil, err
	}

	b, h, err := play.Replay()
	if err != nil {
		return nil, err
	}
	if b.Turn() != side {
		return nil, errs.ErrNotYourTurn
	}

	move, err := shogi.ParseUSIMove(req.Move, side)
	if err != nil {
		return nil, err
	}
	next, err := shogi.Apply(b, move)
	if err != nil {
		return nil, err
	}
	h = h.Append(move)
	u.record(play, next, h)

	if err = u.store.SaveMatch(ctx, play); err != nil {
		return nil, err
	}

	if play.Status == match.StatusActive && play.IsBot(next.Turn()) {
		next, h = u.botReply(ctx, play, next, h)
	}
	return buildState(play, next, h), nil
}

// RequestBotMove retries the bot's move after a failed reply.
func (u *MatchUseCase) RequestBotMove(ctx context.Context, key string, req match.BotMoveRequest) (*match.State, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock := u.lock(play.KeySecret)
	defer unlock()

	play, _, err = u.loadForPlayer(ctx, play.KeySecret, req.PlayerID)
	if err != nil {
		return nil, err
	}
	b, h, err := play.Replay()
	if err != nil {
		return nil, err
	}
	if !play.IsBot(b.Turn()) {
		return nil, errs.ErrNotYourTurn
	}

	next, nextHistory, err := u.applyBotMove(ctx, play, b, h)
	if err != nil {
		return nil, err
	}
	return buildState(play, next, nextHistory), nil
}

// Undo takes back moves by replaying the shortened history. In a human match
// Count plies are removed (default one). In a bot match Count counts the
// player's own moves, and the bot's replies go with them.
func (u *MatchUseCase) Undo(ctx context.Context, key string, req match.UndoRequest) (*match.State, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock := u.lock(play.KeySecret)
	defer unlock()

	play, side, err := u.loadForPlayer(ctx, play.KeySecret, req.PlayerID)
	if err != nil {
		return nil, err
	}
	_, h, err := play.Replay()
	if err != nil {
		return nil, err
	}

	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return nil, badRequest("count must be positive")
	}

	n := count
	if play.Opponent == match.OpponentBot {
		n = pliesForOwnMoves(len(h), side, count)
	}
	if n == 0 || len(h) == 0 {
		return nil, errs.ErrNothingToUndo
	}
	if n > len(h) {
		return nil, badRequest("cannot undo %d of %d moves", n, len(h))
	}

	b, kept, err := shogi.Undo(h, n)
	if err != nil {
		return nil, err
	}
	play.Moves = kept.Records()
	if err = u.store.SaveMatch(ctx, play); err != nil {
		return nil, err
	}
	u.log.Infof("match %s: %s took back %d plies", play.KeyPublic, req.PlayerID, n)
	return buildState(play, b, kept), nil
}

// pliesForOwnMoves counts the plies to remove so that the last count moves
// of side disappear. Ply i (from zero) is played by Sente when i is even.
// It returns zero when side has fewer than count moves.
func pliesForOwnMoves(plies int, side shogi.Side, count int) int {
	found := 0
	for i := plies - 1; i >= 0; i-- {
		mover := shogi.Sente
		if i%2 == 1 {
			mover = shogi.Gote
		}
		if mover != side {
			continue
		}
		found++
		if found == count {
			return plies - i
		}
	}
	return 0
}

func (u *MatchUseCase) Resign(ctx context.Context, key string, req match.ResignRequest) (*match.State, error) {
	play, err := u.store.GetMatch(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock := u.lock(play.KeySecret)
	defer unlock()

	play, side, err := u.loadForPlayer(ctx, play.KeySecret, req.PlayerID)
	if err != nil {
		return nil, err
	}
	b, h, err := play.Replay()
	if err != nil {
		return nil, err
	}

	u.finish(play, side.Opponent(), match.ReasonResign)
	if err = u.store.SaveMatch(ctx, play); err != nil {
		return nil, err
	}
	u.log.Infof("match %s: %s resigned", play.KeyPublic, req.PlayerID)
	return buildState(play, b, h), nil
}

func (u *MatchUseCase) Archive(ctx context.Context, pageNum int) (*match.ArchivePage, error) {
	if pageNum < 1 {
		return nil, badRequest("page must be at least 1")
	}
	pageLimit := u.pageLimit
	if pageLimit < 1 {
		pageLimit = 20
	}

	matches, total, err := u.store.ListFinished(ctx, pageNum, pageLimit)
	if err != nil {
		return nil, err
	}

	page := &match.ArchivePage{
		PageNum:    pageNum,
		TotalPages: int((total + int64(pageLimit) - 1) / int64(pageLimit)),
		Matches:    make([]match.ArchiveEntry, 0, len(matches)),
	}
	for _, m := range matches {
		page.Matches = append(page.Matches, match.ArchiveEntry{
			KeyPublic:   m.KeyPublic,
			Opponent:    m.Opponent,
			BotLevel:    m.BotLevel,
			PlayerSente: m.PlayerSente,
			PlayerGote:  m.PlayerGote,
			Winner:      m.Winner,
			Reason:      m.Reason,
			Plies:       len(m.Moves),
			FinishedAt:  m.FinishedAt,
		})
	}
	return page, nil
}

// loadForPlayer re-reads the match under its lock and checks that it is
// being played and that playerID sits in it.
func (u *MatchUseCase) loadForPlayer(ctx context.Context, keySecret string, playerID string) (*match.Match, shogi.Side, error) {
	play, err := u.store.GetMatch(ctx, keySecret)
	if err != nil {
		return nil, shogi.Sente, err
	}
	switch play.Status {
	case match.StatusWaitOpponent:
		return nil, shogi.Sente, errs.ErrMatchNotStarted
	case match.StatusFinished:
		return nil, shogi.Sente, errs.ErrMatchFinished
	}
	side, ok := play.SideOf(playerID)
	if !ok || play.IsBot(side) {
		return nil, shogi.Sente, errs.ErrNotParticipant
	}
	return play, side, nil
}

// record stores h on the match and closes it when b is decided.
func (u *MatchUseCase) record(play *match.Match, b shogi.Board, h shogi.History) {
	play.Moves = h.Records()
	winner, over := b.Winner()
	if !over {
		return
	}
	reason := match.ReasonNoMoves
	if b.Check() {
		reason = match.ReasonCheckmate
	}
	u.finish(play, winner, reason)
}

func (u *MatchUseCase) finish(play *match.Match, winner shogi.Side, reason match.Reason) {
	play.Status = match.StatusFinished
	play.Winner = winner.String()
	play.Reason = reason
	play.FinishedAt = u.now()
	u.log.Infof("match %s finished: %s wins by %s", play.KeyPublic, play.Winner, reason)
}

// botReply plays the bot's move, logging instead of failing so the player's
// own move stays applied.
func (u *MatchUseCase) botReply(ctx context.Context, play *match.Match, b shogi.Board, h shogi.History) (shogi.Board, shogi.History) {
	next, nextHistory, err := u.applyBotMove(ctx, play, b, h)
	if err != nil {
		u.log.Warnw("bot reply failed", "match", play.KeyPublic, "level", play.BotLevel, "error", err)
		return b, h
	}
	return next, nextHistory
}

func (u *MatchUseCase) applyBotMove(ctx context.Context, play *match.Match, b shogi.Board, h shogi.History) (shogi.Board, shogi.History, error) {
	botCtx := ctx
	if u.botTimeout > 0 {
		var cancel context.CancelFunc
		botCtx, cancel = context.WithTimeout(ctx, u.botTimeout)
		defer cancel()
	}

	usi, err := u.bot.BestMove(botCtx, shogi.ToSFEN(b, len(h)+1), play.BotLevel)
	if err != nil {
		return b, h, fmt.Errorf("%w: %w", errs.ErrBotUnavailable, err)
	}
	move, err := shogi.ParseUSIMove(usi, b.Turn())
	if err != nil {
		return b, h, fmt.Errorf("%w: bot sent %q: %w", errs.ErrBotUnavailable, usi, err)
	}
	next, err := shogi.Apply(b, move)
	if err != nil {
		return b, h, fmt.Errorf("%w: bot played %q: %w", errs.ErrBotUnavailable, usi, err)
	}

	nextHistory := h.Append(move)
	u.record(play, next, nextHistory)
	if err = u.store.SaveMatch(ctx, play); err != nil {
		// the stored match still holds the player's move alone
		play.Moves = h.Records()
		play.Status = match.StatusActive
		play.Winner, play.Reason, play.FinishedAt = "", "", time.Time{}
		return b, h, err
	}
	return next, nextHistory, nil
}

func buildState(play *match.Match, b shogi.Board, h shogi.History) *match.State {
	moves := make([]string, len(h))
	for i, m := range h {
		moves[i] = shogi.FormatUSIMove(m)
	}
	state := &match.State{
		KeyPublic:   play.KeyPublic,
		Status:      play.Status,
		Opponent:    play.Opponent,
		BotLevel:    play.BotLevel,
		PlayerSente: play.PlayerSente,
		PlayerGote:  play.PlayerGote,
		Board:       shogi.Flatten(b),
		SFEN:        shogi.ToSFEN(b, len(h)+1),
		Ply:         len(h),
		Moves:       moves,
		Winner:      play.Winner,
		Reason:      play.Reason,
	}
	if len(moves) > 0 {
		state.LastMove = moves[len(moves)-1]
	}
	state.AwaitingBot = play.Status == match.StatusActive && play.IsBot(b.Turn())
	return state
}

package errors

import "errors"

var (
	ErrCreateMatchFailed = errors.New("create match failed")
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchNotStarted   = errors.New("match is waiting for an opponent")
	ErrMatchFinished     = errors.New("match is finished")
	ErrNotParticipant    = errors.New("player is not a participant of the match")
	ErrNotYourTurn       = errors.New("it is not the player's turn")
	ErrSideTaken         = errors.New("both sides are already taken")
	ErrBadRequest        = errors.New("bad request")
	ErrBotUnavailable    = errors.New("bot is unavailable")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrPuzzleNotFound    = errors.New("puzzle not found")
	ErrInternal          = errors.New("internal error")
)

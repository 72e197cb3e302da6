package shogi

import (
	"errors"
	"fmt"
)

type ErrorKind uint8

const (
	IllegalMove ErrorKind = iota + 1
	IllegalDrop
	OutOfTurn
	MalformedInput
)

func (k ErrorKind) String() string {
	switch k {
	case IllegalMove:
		return "illegal move"
	case IllegalDrop:
		return "illegal drop"
	case OutOfTurn:
		return "out of turn"
	case MalformedInput:
		return "malformed input"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is; a *MoveError matches the sentinel of its Kind.
var (
	ErrIllegalMove    = errors.New(IllegalMove.String())
	ErrIllegalDrop    = errors.New(IllegalDrop.String())
	ErrOutOfTurn      = errors.New(OutOfTurn.String())
	ErrMalformedInput = errors.New(MalformedInput.String())
)

type MoveError struct {
	Kind   ErrorKind
	Reason string
}

func (e *MoveError) Error() string {
	return e.Kind.String() + ": " + e.Reason
}

func (e *MoveError) Is(target error) bool {
	switch target {
	case ErrIllegalMove:
		return e.Kind == IllegalMove
	case ErrIllegalDrop:
		return e.Kind == IllegalDrop
	case ErrOutOfTurn:
		return e.Kind == OutOfTurn
	case ErrMalformedInput:
		return e.Kind == MalformedInput
	}
	return false
}

func newMoveError(kind ErrorKind, format string, args ...any) *MoveError {
	return &MoveError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func malformed(format string, args ...any) *MoveError {
	return newMoveError(MalformedInput, format, args...)
}

package match

import (
	"time"

	"shogi_backend/internal/shogi"
)

type Status string

const (
	StatusWaitOpponent Status = "waiting_opponent"
	StatusActive       Status = "active"
	StatusFinished     Status = "finished"
)

type Opponent string

const (
	OpponentHuman Opponent = "human"
	OpponentBot   Opponent = "bot"
)

type Reason string

const (
	ReasonCheckmate Reason = "checkmate"
	ReasonNoMoves   Reason = "no_moves"
	ReasonResign    Reason = "resign"
)

// BotPlayerID occupies the bot's seat in bot matches.
const BotPlayerID = "bot"

type Match struct {
	KeySecret   string             `json:"key_secret" bson:"key_secret"`
	KeyPublic   string             `json:"key_public" bson:"key_public"`
	Status      Status             `json:"status" bson:"status"`
	Opponent    Opponent           `json:"opponent" bson:"opponent"`
	BotLevel    int                `json:"bot_level,omitempty" bson:"bot_level,omitempty"`
	PlayerSente string             `json:"player_sente" bson:"player_sente"`
	PlayerGote  string             `json:"player_gote" bson:"player_gote"`
	Moves       []shogi.MoveRecord `json:"moves" bson:"moves"`
	Winner      string             `json:"winner,omitempty" bson:"winner,omitempty"`
	Reason      Reason             `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	StartedAt   time.Time          `json:"started_at" bson:"started_at"`
	FinishedAt  time.Time          `json:"finished_at" bson:"finished_at"`
}

// SideOf reports which side playerID plays.
func (m *Match) SideOf(playerID string) (shogi.Side, bool) {
	switch {
	case playerID == "":
		return shogi.Sente, false
	case m.PlayerSente == playerID:
		return shogi.Sente, true
	case m.PlayerGote == playerID:
		return shogi.Gote, true
	default:
		return shogi.Sente, false
	}
}

func (m *Match) PlayerOf(side shogi.Side) string {
	if side == shogi.Sente {
		return m.PlayerSente
	}
	return m.PlayerGote
}

func (m *Match) IsBot(side shogi.Side) bool {
	return m.Opponent == OpponentBot && m.PlayerOf(side) == BotPlayerID
}

// Replay rebuilds the current board from the stored moves.
func (m *Match) Replay() (shogi.Board, shogi.History, error) {
	h, err := shogi.HistoryFromRecords(m.Moves)
	if err != nil {
		return shogi.Board{}, nil, err
	}
	b, err := shogi.Replay(h)
	if err != nil {
		return shogi.Board{}, nil, err
	}
	return b, h, nil
}

type CreateMatchRequest struct {
	PlayerID string   `json:"player_id"`
	Opponent Opponent `json:"opponent"`
	Level    int      `json:"level"`
	Side     string   `json:"side"`
}

type CreateMatchResponse struct {
	KeySecret string `json:"key_secret"`
	KeyPublic string `json:"key_public"`
	State     *State `json:"state"`
}

type JoinRequest struct {
	PlayerID string `json:"player_id"`
}

type JoinResponse struct {
	KeySecret string `json:"key_secret"`
	Side      string `json:"side"`
	State     *State `json:"state"`
}

// MoveRequest carries one move in USI notation, e.g. "7g7f", "8h2b+" or "P*5e".
type MoveRequest struct {
	PlayerID string `json:"player_id"`
	Move     string `json:"move"`
}

type UndoRequest struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count,omitempty"`
}

type ResignRequest struct {
	PlayerID string `json:"player_id"`
}

type BotMoveRequest struct {
	PlayerID string `json:"player_id"`
}

type State struct {
	KeyPublic   string          `json:"key_public"`
	Status      Status          `json:"status"`
	Opponent    Opponent        `json:"opponent"`
	BotLevel    int             `json:"bot_level,omitempty"`
	PlayerSente string          `json:"player_sente"`
	PlayerGote  string          `json:"player_gote"`
	Board       shogi.FlatBoard `json:"board"`
	SFEN        string          `json:"sfen"`
	Ply         int             `json:"ply"`
	Moves       []string        `json:"moves"`
	LastMove    string          `json:"last_move,omitempty"`
	AwaitingBot bool            `json:"awaiting_bot,omitempty"`
	Winner      string          `json:"winner,omitempty"`
	Reason      Reason          `json:"reason,omitempty"`
}

// LegalTargets previews where a board piece or a hand piece may go.
type LegalTargets struct {
	From    string   `json:"from,omitempty"`
	Drop    string   `json:"drop,omitempty"`
	Targets []string `json:"targets"`
	// Promotable targets offer a choice; Forced targets always promote.
	Promotable []string `json:"promotable,omitempty"`
	Forced     []string `json:"forced,omitempty"`
}

type ArchiveEntry struct {
	KeyPublic   string    `json:"key_public"`
	Opponent    Opponent  `json:"opponent"`
	BotLevel    int       `json:"bot_level,omitempty"`
	PlayerSente string    `json:"player_sente"`
	PlayerGote  string    `json:"player_gote"`
	Winner      string    `json:"winner"`
	Reason      Reason    `json:"reason"`
	Plies       int       `json:"plies"`
	FinishedAt  time.Time `json:"finished_at"`
}

type ArchivePage struct {
	PageNum    int            `json:"page_num"`
	TotalPages int            `json:"total_pages"`
	Matches    []ArchiveEntry `json:"matches"`
}

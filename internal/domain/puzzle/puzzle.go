package puzzle

type Status string

const (
	StatusSolved   Status = "solved"
	StatusUnsolved Status = "unsolved"
)

// Puzzle is a mate-in-one problem. Number is unique across the collection and
// Level comes from the "Chapter N" directory it was imported from.
type Puzzle struct {
	Number int    `json:"puzzle_number" bson:"puzzle_number"`
	Level  int    `json:"puzzle_level" bson:"puzzle_level"`
	SFEN   string `json:"sfen" bson:"sfen"`
	Status Status `json:"status,omitempty" bson:"-"`
}

type Page struct {
	PageNum          int      `json:"page_num"`
	TotalPages       int      `json:"total_pages"`
	PageWithUnsolved int      `json:"page_with_unsolved"`
	Puzzles          []Puzzle `json:"puzzles"`
}

type SolveRequest struct {
	PlayerID string `json:"player_id"`
	Move     string `json:"move"`
}

type SolveResponse struct {
	Number int    `json:"puzzle_number"`
	Move   string `json:"move"`
	Solved bool   `json:"solved"`
	// SFEN is the position after the move, so a wrong answer can be shown.
	SFEN string `json:"sfen"`
}

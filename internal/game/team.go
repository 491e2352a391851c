// internal/game/team.go
package game

import "github.com/google/uuid"

// Team is a participant of a live game together with its score matrix.
//
// Scores is indexed by round position, then question index. Its shape is owned by the
// Game that holds the team: rows are added by AddRound, never by callers.
type Team struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Scores [][]float64 `json:"scores"`
}

// Total sums every entry of the score matrix.
func (t *Team) Total() float64 {
	var sum float64
	for _, row := range t.Scores {
		sum += sumRow(row)
	}
	return sum
}

func (t *Team) copyScores() [][]float64 {
	out := make([][]float64, len(t.Scores))
	for i, row := range t.Scores {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func sumRow(row []float64) float64 {
	var sum float64
	for _, v := range row {
		sum += v
	}
	return sum
}

package game

import (
	"fmt"

	"github.com/google/uuid"
)

// Snapshot is a detached copy of a sealed game, safe to keep after the live session
// is gone. It is what the finished-game archive stores.
type Snapshot struct {
	ID         uuid.UUID    `json:"id"`
	Name       string       `json:"name"`
	IsIntrigue bool         `json:"isIntrigue"`
	Rounds     []Round      `json:"rounds"`
	Teams      []TeamScores `json:"teams"`
}

// Snapshot copies the game's current state.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:         g.ID,
		Name:       g.Name,
		IsIntrigue: g.IsIntrigue,
		Rounds:     append([]Round(nil), g.Rounds...),
		Teams:      []TeamScores(g.FullScoreTable()),
	}
}

// FromSnapshot rebuilds a sealed game and checks the matrix shape on the way.
func FromSnapshot(s Snapshot) (*Game, error) {
	g := New(s.ID, s.Name)
	for _, r := range s.Rounds {
		if err := g.AddRound(r); err != nil {
			return nil, err
		}
	}
	for _, ts := range s.Teams {
		if err := g.AddTeam(ts.TeamID, ts.TeamName); err != nil {
			return nil, err
		}
		if len(ts.Scores) != len(g.Rounds) {
			return nil, fmt.Errorf("%w: team %s has %d rows, want %d", ErrInvalidState, ts.TeamName, len(ts.Scores), len(g.Rounds))
		}
		t, _ := g.Team(ts.TeamID)
		for i, row := range ts.Scores {
			if len(row) != g.Rounds[i].QuestionCount {
				return nil, fmt.Errorf("%w: team %s round %d has %d columns, want %d", ErrInvalidState, ts.TeamName, i+1, len(row), g.Rounds[i].QuestionCount)
			}
			copy(t.Scores[i], row)
		}
	}
	if err := g.Seal(); err != nil {
		return nil, err
	}
	g.IsIntrigue = s.IsIntrigue
	return g, nil
}

// internal/game/scoring.go
package game

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
)

// TeamScores is one row of a ScoreTable: a team and a copy of its matrix.
type TeamScores struct {
	TeamID   uuid.UUID   `json:"teamId"`
	TeamName string      `json:"teamName"`
	Scores   [][]float64 `json:"scores"`
}

// ScoreTable is an ordered set of team rows. Order follows team insertion order,
// which is also the row order of the delimited report.
type ScoreTable []TeamScores

// AsMap keys the table by team name.
func (t ScoreTable) AsMap() map[string][][]float64 {
	m := make(map[string][][]float64, len(t))
	for _, row := range t {
		m[row.TeamName] = row.Scores
	}
	return m
}

// Names lists the team names present in the table.
func (t ScoreTable) Names() []string {
	names := make([]string, len(t))
	for i, row := range t {
		names[i] = row.TeamName
	}
	return names
}

// MarshalJSON renders the table as {teamName: matrix}, the shape clients consume.
func (t ScoreTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.AsMap())
}

// TotalScorePerTeam sums every team's matrix, keyed by team name.
func (g *Game) TotalScorePerTeam() map[string]float64 {
	totals := make(map[string]float64, len(g.Teams))
	for _, t := range g.Teams {
		totals[t.Name] = t.Total()
	}
	return totals
}

// FullScoreTable is the unrestricted administrator view.
func (g *Game) FullScoreTable() ScoreTable {
	table := make(ScoreTable, 0, len(g.Teams))
	for _, t := range g.Teams {
		table = append(table, TeamScores{TeamID: t.ID, TeamName: t.Name, Scores: t.copyScores()})
	}
	return table
}

// ScoreTableForTeam returns a table holding only the given team's row.
func (g *Game) ScoreTableForTeam(teamID uuid.UUID) (ScoreTable, error) {
	t, ok := g.Team(teamID)
	if !ok {
		return nil, fmt.Errorf("%w: team %s in game %s", ErrNotFound, teamID, g.ID)
	}
	return ScoreTable{{TeamID: t.ID, TeamName: t.Name, Scores: t.copyScores()}}, nil
}

// TableFor applies the intrigue visibility rule for the given caller.
//
// A user-class caller without a team is rejected before anything is computed. While
// intrigue is on, a user-class caller only sees its own team. Everyone else gets the
// full table.
func (g *Game) TableFor(c auth.Claims) (ScoreTable, error) {
	if c.Restricted() && !c.HasTeam() {
		return nil, ErrMissingTeamAssociation
	}
	if c.Restricted() && g.IsIntrigue {
		return g.ScoreTableForTeam(c.TeamID)
	}
	return g.FullScoreTable(), nil
}

// internal/game/game.go
package game

import (
	"fmt"

	"github.com/google/uuid"
)

// Game is the in-memory aggregate of one trivia session: its rounds, its teams with
// their score matrices, and the intrigue flag.
//
// A Game is built in two phases. While unsealed, AddRound and AddTeam shape it from the
// persisted definition. Seal ends that phase; from then on only scores and the intrigue
// flag change. Game does no locking of its own; the session registry serializes access.
type Game struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Rounds     []Round   `json:"rounds"`
	Teams      []*Team   `json:"teams"`
	IsIntrigue bool      `json:"isIntrigue"`

	sealed    bool
	teamIndex map[uuid.UUID]int
}

// New returns an empty, unsealed game.
func New(id uuid.UUID, name string) *Game {
	return &Game{
		ID:        id,
		Name:      name,
		Rounds:    []Round{},
		Teams:     []*Team{},
		teamIndex: make(map[uuid.UUID]int),
	}
}

// Sealed reports whether the construction phase is over.
func (g *Game) Sealed() bool {
	return g.sealed
}

// AddRound appends the next round and grows every team's matrix by a zero row.
func (g *Game) AddRound(r Round) error {
	if g.sealed {
		return fmt.Errorf("%w: cannot add round to game %s after start", ErrInvalidState, g.ID)
	}
	if r.Number != len(g.Rounds)+1 {
		return fmt.Errorf("%w: expected round %d, got %d", ErrInvalidState, len(g.Rounds)+1, r.Number)
	}
	if r.QuestionCount <= 0 {
		return fmt.Errorf("%w: round %d has no questions", ErrInvalidState, r.Number)
	}

	g.Rounds = append(g.Rounds, r)
	for _, t := range g.Teams {
		t.Scores = append(t.Scores, make([]float64, r.QuestionCount))
	}
	return nil
}

// AddTeam registers a team with a zeroed matrix of the current shape.
// Ids and names must be unique within the game.
func (g *Game) AddTeam(id uuid.UUID, name string) error {
	if g.sealed {
		return fmt.Errorf("%w: cannot add team to game %s after start", ErrInvalidState, g.ID)
	}
	if _, dup := g.teamIndex[id]; dup {
		return fmt.Errorf("%w: team %s already in game", ErrInvalidState, id)
	}
	for _, t := range g.Teams {
		if t.Name == name {
			return fmt.Errorf("%w: team name %q already in game", ErrInvalidState, name)
		}
	}

	scores := make([][]float64, len(g.Rounds))
	for i, r := range g.Rounds {
		scores[i] = make([]float64, r.QuestionCount)
	}
	g.teamIndex[id] = len(g.Teams)
	g.Teams = append(g.Teams, &Team{ID: id, Name: name, Scores: scores})
	return nil
}

// Seal ends the construction phase. A game without rounds cannot be sealed.
func (g *Game) Seal() error {
	if len(g.Rounds) == 0 {
		return fmt.Errorf("%w: game %s has no rounds", ErrInvalidState, g.ID)
	}
	g.sealed = true
	return nil
}

// SetIntrigue toggles intrigue mode.
func (g *Game) SetIntrigue(on bool) {
	g.IsIntrigue = on
}

// Team looks up a team by id.
func (g *Game) Team(id uuid.UUID) (*Team, bool) {
	i, ok := g.teamIndex[id]
	if !ok {
		return nil, false
	}
	return g.Teams[i], true
}

// SetScore records the judged value of one answer. round and question are 0-based.
// All checks run before the matrix is touched.
func (g *Game) SetScore(teamID uuid.UUID, round, question int, value float64) error {
	if !g.sealed {
		return fmt.Errorf("%w: game %s is not started", ErrInvalidState, g.ID)
	}
	t, ok := g.Team(teamID)
	if !ok {
		return fmt.Errorf("%w: team %s in game %s", ErrNotFound, teamID, g.ID)
	}
	if round < 0 || round >= len(g.Rounds) {
		return fmt.Errorf("%w: round %d of %d", ErrOutOfRange, round, len(g.Rounds))
	}
	if question < 0 || question >= g.Rounds[round].QuestionCount {
		return fmt.Errorf("%w: question %d of %d in round %d", ErrOutOfRange, question, g.Rounds[round].QuestionCount, round)
	}

	t.Scores[round][question] = value
	return nil
}

// QuestionCount returns the question count of the first round, which is what the
// start summary reports. Zero when the game has no rounds.
func (g *Game) QuestionCount() int {
	if len(g.Rounds) == 0 {
		return 0
	}
	return g.Rounds[0].QuestionCount
}

// TeamNames lists team names in insertion order.
func (g *Game) TeamNames() []string {
	names := make([]string, len(g.Teams))
	for i, t := range g.Teams {
		names[i] = t.Name
	}
	return names
}

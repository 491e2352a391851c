// internal/models/game.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Known values of games.status. The column is free text; the live engine does not
// interpret it.
const (
	GameStatusCreated  = "created"
	GameStatusStarted  = "started"
	GameStatusFinished = "finished"
)

// GameDefinition is a row in the games table with its teams and rounds.
type GameDefinition struct {
	ID     uuid.UUID         `json:"id"`
	Name   string            `json:"name"`
	Status string            `json:"status"`
	Teams  []TeamDefinition  `json:"teams"`
	Rounds []RoundDefinition `json:"rounds"`
}

// TeamDefinition is a team registered for a game.
type TeamDefinition struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RoundDefinition is a row in the rounds table.
type RoundDefinition struct {
	Number          int     `json:"number"`
	QuestionCount   int     `json:"questionCount"`
	QuestionCost    float64 `json:"questionCost"`
	QuestionTimeSec int     `json:"questionTime"`
}

// ScoreEvent is one recorded answer judgement, as queued for the historian and stored
// in score_events.
type ScoreEvent struct {
	GameID    uuid.UUID `json:"game_id"`
	TeamID    uuid.UUID `json:"team_id"`
	Round     int       `json:"round"`    // 1-based
	Question  int       `json:"question"` // 1-based
	Score     float64   `json:"score"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

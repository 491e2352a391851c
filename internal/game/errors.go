// internal/game/errors.go
package game

import "errors"

var (
	// ErrNotFound is returned for an unknown game id, or an unknown team inside a game.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyStarted is returned when a live session already exists for the game id.
	ErrAlreadyStarted = errors.New("game already started")

	// ErrOutOfRange is returned for a round or question index outside the game's shape.
	ErrOutOfRange = errors.New("index out of range")

	// ErrInvalidState is returned when an operation is attempted outside its lifecycle phase.
	ErrInvalidState = errors.New("invalid state")

	// ErrMissingTeamAssociation is returned when a user-class caller without a team claim
	// asks for a score view.
	ErrMissingTeamAssociation = errors.New("user without team")

	// ErrFinished is returned when a mutation targets a game whose live window has ended.
	ErrFinished = errors.New("game finished")
)

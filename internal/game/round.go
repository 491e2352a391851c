// internal/game/round.go
package game

import (
	"fmt"
	"time"
)

// Round is the immutable shape of one round: how many questions, what each is worth,
// and how long teams have to answer.
type Round struct {
	Number        int           `json:"number"` // 1-based position inside the game
	QuestionCount int           `json:"questionCount"`
	QuestionCost  float64       `json:"questionCost"`
	QuestionTime  time.Duration `json:"questionTime"`
}

// NewRound validates and builds a Round. Every field must be positive.
func NewRound(number, questionCount int, questionCost float64, questionTimeSec int) (Round, error) {
	if number <= 0 {
		return Round{}, fmt.Errorf("%w: round number %d must be positive", ErrInvalidState, number)
	}
	if questionCount <= 0 {
		return Round{}, fmt.Errorf("%w: round %d needs at least one question", ErrInvalidState, number)
	}
	if questionCost <= 0 {
		return Round{}, fmt.Errorf("%w: round %d question cost must be positive", ErrInvalidState, number)
	}
	if questionTimeSec <= 0 {
		return Round{}, fmt.Errorf("%w: round %d question time must be positive", ErrInvalidState, number)
	}

	return Round{
		Number:        number,
		QuestionCount: questionCount,
		QuestionCost:  questionCost,
		QuestionTime:  time.Duration(questionTimeSec) * time.Second,
	}, nil
}

// internal/database/game.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/trivia/internal/models"
)

// ErrGameNotFound is returned when no games row matches the id.
var ErrGameNotFound = errors.New("game definition not found")

// GameRepository reads game definitions and writes status and score history.
type GameRepository struct {
	db DBTX
}

// NewGameRepository wraps a pool (or any DBTX).
func NewGameRepository(db DBTX) *GameRepository {
	return &GameRepository{db: db}
}

// LoadGameDefinition fetches a game with its teams (registration order) and rounds
// (by number).
func (r *GameRepository) LoadGameDefinition(ctx context.Context, gameID uuid.UUID) (*models.GameDefinition, error) {
	def := &models.GameDefinition{ID: gameID}

	q := `SELECT name, status FROM games WHERE id = $1`
	err := r.db.QueryRow(ctx, q, gameID).Scan(&def.Name, &def.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("select game %s: %w", gameID, err)
	}

	teamsQ := `
		SELECT t.id, t.name
		FROM game_teams gt
		JOIN teams t ON t.id = gt.team_id
		WHERE gt.game_id = $1
		ORDER BY gt.position
	`
	rows, err := r.db.Query(ctx, teamsQ, gameID)
	if err != nil {
		return nil, fmt.Errorf("select teams of game %s: %w", gameID, err)
	}
	for rows.Next() {
		var t models.TeamDefinition
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			rows.Close()
			return nil, err
		}
		def.Teams = append(def.Teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roundsQ := `
		SELECT number, question_count, question_cost, question_time
		FROM rounds
		WHERE game_id = $1
		ORDER BY number
	`
	rows, err = r.db.Query(ctx, roundsQ, gameID)
	if err != nil {
		return nil, fmt.Errorf("select rounds of game %s: %w", gameID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var rd models.RoundDefinition
		if err := rows.Scan(&rd.Number, &rd.QuestionCount, &rd.QuestionCost, &rd.QuestionTimeSec); err != nil {
			return nil, err
		}
		def.Rounds = append(def.Rounds, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return def, nil
}

// UpdateGameStatus stores an opaque status label for the game.
func (r *GameRepository) UpdateGameStatus(ctx context.Context, gameID uuid.UUID, status string) error {
	q := `UPDATE games SET status = $1 WHERE id = $2`
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, status, gameID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
		}
		return nil
	})
}

// InsertScoreEvents appends a batch of score events in one transaction.
func (r *GameRepository) InsertScoreEvents(ctx context.Context, events []models.ScoreEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := `
		INSERT INTO score_events (game_id, team_id, round, question, score, actor_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, ev := range events {
			if _, err := tx.Exec(ctx, q,
				ev.GameID, ev.TeamID, ev.Round, ev.Question, ev.Score, ev.ActorID, ev.Timestamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert %d score events: %w", len(events), err)
	}
	return nil
}

// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/metrics"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/session"
	"github.com/sirupsen/logrus"
)

// DefinitionStore reads persisted games and records their status label.
type DefinitionStore interface {
	LoadGameDefinition(ctx context.Context, gameID uuid.UUID) (*models.GameDefinition, error)
	UpdateGameStatus(ctx context.Context, gameID uuid.UUID, status string) error
}

// ScorePublisher forwards recorded scores to the historian.
type ScorePublisher interface {
	PublishScoreEvent(ctx context.Context, ev models.ScoreEvent) error
}

// ResultArchive keeps the final state of games whose live window ended.
type ResultArchive interface {
	SaveFinal(ctx context.Context, snap game.Snapshot) error
	LoadFinal(ctx context.Context, gameID uuid.UUID) (game.Snapshot, error)
	DeleteFinal(ctx context.Context, gameID uuid.UUID) error
}

const archiveTimeout = 5 * time.Second

// GameServer runs the game operations on top of the session registry.
type GameServer struct {
	Registry *session.Registry

	defs    DefinitionStore
	scores  ScorePublisher
	archive ResultArchive
	metrics *metrics.Recorder
	logger  logrus.FieldLogger
	now     func() time.Time

	sessionOpts []session.Option
}

// ServerOption configures a GameServer.
type ServerOption func(*GameServer)

// WithScorePublisher enables score events for the historian.
func WithScorePublisher(p ScorePublisher) ServerOption {
	return func(gs *GameServer) { gs.scores = p }
}

// WithResultArchive keeps expired games readable.
func WithResultArchive(a ResultArchive) ServerOption {
	return func(gs *GameServer) { gs.archive = a }
}

func WithMetrics(rec *metrics.Recorder) ServerOption {
	return func(gs *GameServer) { gs.metrics = rec }
}

// WithSessionOptions passes options through to the registry.
func WithSessionOptions(opts ...session.Option) ServerOption {
	return func(gs *GameServer) { gs.sessionOpts = append(gs.sessionOpts, opts...) }
}

// WithServerClock sets the clock used for score event timestamps.
func WithServerClock(now func() time.Time) ServerOption {
	return func(gs *GameServer) { gs.now = now }
}

// NewGameServer builds a GameServer with its own registry.
func NewGameServer(defs DefinitionStore, logger logrus.FieldLogger, opts ...ServerOption) *GameServer {
	gs := &GameServer{
		defs:   defs,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(gs)
	}

	regOpts := append([]session.Option{
		session.WithLogger(logger),
		session.WithEvictHook(gs.onEvict),
	}, gs.sessionOpts...)
	gs.Registry = session.NewRegistry(regOpts...)
	gs.metrics.TrackLiveGames(gs.Registry.Len)
	return gs
}

// StartSummary is returned by StartGame.
type StartSummary struct {
	Name          string   `json:"name"`
	Teams         []string `json:"teams"`
	RoundCount    int      `json:"roundCount"`
	QuestionCount int      `json:"questionCount"`
}

// GameInfo is the persisted definition plus whether a live session exists.
type GameInfo struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	IsStarted     bool      `json:"isStarted"`
	Teams         []string  `json:"teams"`
	RoundCount    int       `json:"roundCount"`
	QuestionCount int       `json:"questionCount"`
}

// ScoreTableView is the gated score table with the game's shape.
type ScoreTableView struct {
	GameID         uuid.UUID       `json:"gameId"`
	IsIntrigue     bool            `json:"isIntrigue"`
	RoundsCount    int             `json:"roundsCount"`
	QuestionsCount int             `json:"questionsCount"`
	Table          game.ScoreTable `json:"totalScoreForAllTeams"`
}

// ScoreInput addresses one cell of a team's matrix. Round and Question are 1-based.
type ScoreInput struct {
	TeamID   uuid.UUID `json:"teamId"`
	Round    int       `json:"round"`
	Question int       `json:"question"`
	Score    float64   `json:"score"`
}

// StartGame loads the persisted definition, opens a live session and marks the game
// started. If the status write fails the session is removed again.
func (gs *GameServer) StartGame(ctx context.Context, gameID uuid.UUID) (StartSummary, error) {
	def, err := gs.loadDefinition(ctx, gameID)
	if err != nil {
		return StartSummary{}, err
	}

	rounds := make([]game.Round, 0, len(def.Rounds))
	for _, rd := range def.Rounds {
		r, err := game.NewRound(rd.Number, rd.QuestionCount, rd.QuestionCost, rd.QuestionTimeSec)
		if err != nil {
			return StartSummary{}, fmt.Errorf("game %s round %d: %w", gameID, rd.Number, err)
		}
		rounds = append(rounds, r)
	}
	teams := make([]session.TeamSeed, 0, len(def.Teams))
	for _, t := range def.Teams {
		teams = append(teams, session.TeamSeed{ID: t.ID, Name: t.Name})
	}

	entry, err := gs.Registry.Start(gameID, def.Name, rounds, teams)
	if err != nil {
		return StartSummary{}, err
	}

	if err := gs.defs.UpdateGameStatus(ctx, gameID, models.GameStatusStarted); err != nil {
		gs.Registry.Evict(gameID)
		return StartSummary{}, fmt.Errorf("mark game %s started: %w", gameID, gs.mapDefinitionErr(err))
	}

	if gs.archive != nil {
		if err := gs.archive.DeleteFinal(ctx, gameID); err != nil {
			gs.logger.WithError(err).WithField("game_id", gameID).Warn("failed to drop archived result")
		}
	}
	gs.metrics.GameStarted()

	var summary StartSummary
	err = entry.View(func(g *game.Game) error {
		summary = StartSummary{
			Name:          g.Name,
			Teams:         g.TeamNames(),
			RoundCount:    len(g.Rounds),
			QuestionCount: g.QuestionCount(),
		}
		return nil
	})
	return summary, err
}

// GetGame returns the persisted definition and whether the game is live.
func (gs *GameServer) GetGame(ctx context.Context, gameID uuid.UUID) (GameInfo, error) {
	def, err := gs.loadDefinition(ctx, gameID)
	if err != nil {
		return GameInfo{}, err
	}
	_, liveErr := gs.Registry.Get(gameID)

	info := GameInfo{
		ID:         def.ID,
		Name:       def.Name,
		Status:     def.Status,
		IsStarted:  liveErr == nil,
		Teams:      make([]string, 0, len(def.Teams)),
		RoundCount: len(def.Rounds),
	}
	for _, t := range def.Teams {
		info.Teams = append(info.Teams, t.Name)
	}
	if len(def.Rounds) > 0 {
		info.QuestionCount = def.Rounds[0].QuestionCount
	}
	return info, nil
}

// ResetGame ends a live session without archiving it. Unknown ids are a no-op.
func (gs *GameServer) ResetGame(gameID uuid.UUID) {
	gs.Registry.Evict(gameID)
}

// SetIntrigue toggles score hiding for user-class callers.
func (gs *GameServer) SetIntrigue(ctx context.Context, gameID uuid.UUID, on bool) error {
	entry, err := gs.liveEntry(ctx, gameID)
	if err != nil {
		return err
	}
	err = entry.Update(func(g *game.Game) error {
		g.SetIntrigue(on)
		return nil
	})
	if err == nil {
		gs.logger.WithFields(logrus.Fields{"game_id": gameID, "intrigue": on}).Info("intrigue changed")
	}
	return err
}

// RecordScore writes one cell and queues a score event for the historian.
func (gs *GameServer) RecordScore(ctx context.Context, gameID uuid.UUID, actor auth.Claims, in ScoreInput) error {
	entry, err := gs.liveEntry(ctx, gameID)
	if err != nil {
		gs.metrics.ScoreRecorded(err)
		return err
	}
	err = entry.Update(func(g *game.Game) error {
		return g.SetScore(in.TeamID, in.Round-1, in.Question-1, in.Score)
	})
	gs.metrics.ScoreRecorded(err)
	if err != nil {
		return err
	}

	if gs.scores != nil {
		ev := models.ScoreEvent{
			GameID:    gameID,
			TeamID:    in.TeamID,
			Round:     in.Round,
			Question:  in.Question,
			Score:     in.Score,
			ActorID:   actor.Subject,
			Timestamp: gs.now().UTC(),
		}
		if err := gs.scores.PublishScoreEvent(ctx, ev); err != nil {
			gs.metrics.PublishFailed()
			gs.logger.WithError(err).WithFields(logrus.Fields{
				"game_id": gameID,
				"team_id": in.TeamID,
			}).Error("failed to queue score event")
		}
	}
	return nil
}

// GetTotalScores returns every team's total, keyed by team name.
func (gs *GameServer) GetTotalScores(ctx context.Context, gameID uuid.UUID) (map[string]float64, error) {
	var totals map[string]float64
	err := gs.read(ctx, gameID, func(g *game.Game) error {
		totals = g.TotalScorePerTeam()
		return nil
	})
	return totals, err
}

// GetScoreTable returns the table the caller may see.
func (gs *GameServer) GetScoreTable(ctx context.Context, gameID uuid.UUID, caller auth.Claims) (ScoreTableView, error) {
	var view ScoreTableView
	err := gs.read(ctx, gameID, func(g *game.Game) error {
		table, err := g.TableFor(caller)
		if err != nil {
			return err
		}
		view = ScoreTableView{
			GameID:         g.ID,
			IsIntrigue:     g.IsIntrigue,
			RoundsCount:    len(g.Rounds),
			QuestionsCount: g.QuestionCount(),
			Table:          table,
		}
		return nil
	})
	return view, err
}

// GetDelimitedReport renders the caller's table as delimited text.
func (gs *GameServer) GetDelimitedReport(ctx context.Context, gameID uuid.UUID, caller auth.Claims) (string, error) {
	var report string
	err := gs.read(ctx, gameID, func(g *game.Game) error {
		var err error
		report, err = g.ReportFor(caller)
		return err
	})
	return report, err
}

// ChangeGameStatus stores an opaque status label on the persisted game.
func (gs *GameServer) ChangeGameStatus(ctx context.Context, gameID uuid.UUID, status string) error {
	if err := gs.defs.UpdateGameStatus(ctx, gameID, status); err != nil {
		return gs.mapDefinitionErr(err)
	}
	gs.logger.WithFields(logrus.Fields{"game_id": gameID, "status": status}).Info("game status changed")
	return nil
}

// JoinPresence records a connected identity in the game's admin or user set.
func (gs *GameServer) JoinPresence(gameID uuid.UUID, role auth.Role, identity string) {
	gs.Registry.JoinPresence(gameID, role, identity)
}

// LeavePresence removes a disconnected identity.
func (gs *GameServer) LeavePresence(gameID uuid.UUID, role auth.Role, identity string) {
	gs.Registry.LeavePresence(gameID, role, identity)
}

// Presence returns who is connected to a live game.
func (gs *GameServer) Presence(gameID uuid.UUID) (session.Presence, error) {
	entry, err := gs.Registry.Get(gameID)
	if err != nil {
		return session.Presence{}, err
	}
	return entry.Presence(), nil
}

func (gs *GameServer) loadDefinition(ctx context.Context, gameID uuid.UUID) (*models.GameDefinition, error) {
	def, err := gs.defs.LoadGameDefinition(ctx, gameID)
	if err != nil {
		return nil, gs.mapDefinitionErr(err)
	}
	return def, nil
}

func (gs *GameServer) mapDefinitionErr(err error) error {
	if errors.Is(err, database.ErrGameNotFound) {
		return fmt.Errorf("%w: %v", game.ErrNotFound, err)
	}
	return err
}

// liveEntry returns the entry for a mutation. Games that only exist in the archive
// yield game.ErrFinished.
func (gs *GameServer) liveEntry(ctx context.Context, gameID uuid.UUID) (*session.Entry, error) {
	entry, err := gs.Registry.Get(gameID)
	if err == nil {
		return entry, nil
	}
	if gs.archive != nil {
		if _, aerr := gs.archive.LoadFinal(ctx, gameID); aerr == nil {
			return nil, fmt.Errorf("%w: game %s", game.ErrFinished, gameID)
		}
	}
	return nil, err
}

// read runs fn against the live game, or against the archived final state once the
// live window is over.
func (gs *GameServer) read(ctx context.Context, gameID uuid.UUID, fn func(g *game.Game) error) error {
	entry, err := gs.Registry.Get(gameID)
	if err == nil {
		ran := false
		err = entry.View(func(g *game.Game) error {
			ran = true
			return fn(g)
		})
		if ran || !errors.Is(err, game.ErrNotFound) {
			return err
		}
		// evicted between Get and View
	}
	if gs.archive == nil {
		return err
	}

	snap, aerr := gs.archive.LoadFinal(ctx, gameID)
	if errors.Is(aerr, cache.ErrNotArchived) {
		return err
	}
	if aerr != nil {
		return aerr
	}
	g, aerr := game.FromSnapshot(snap)
	if aerr != nil {
		return aerr
	}
	return fn(g)
}

func (gs *GameServer) onEvict(final game.Snapshot, reason session.EvictReason) {
	gs.metrics.GameEvicted(string(reason))
	if reason != session.ReasonExpired || gs.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := gs.archive.SaveFinal(ctx, final); err != nil {
		gs.logger.WithError(err).WithField("game_id", final.ID).Error("failed to archive finished game")
	}
}

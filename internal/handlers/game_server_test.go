package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/metrics"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDefs struct {
	mu        sync.Mutex
	defs      map[uuid.UUID]*models.GameDefinition
	statusErr error
}

func newFakeDefs() *fakeDefs {
	return &fakeDefs{defs: make(map[uuid.UUID]*models.GameDefinition)}
}

func (f *fakeDefs) add(def *models.GameDefinition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defs[def.ID] = def
}

func (f *fakeDefs) LoadGameDefinition(_ context.Context, id uuid.UUID) (*models.GameDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrGameNotFound, id)
	}
	cp := *def
	return &cp, nil
}

func (f *fakeDefs) UpdateGameStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	def, ok := f.defs[id]
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrGameNotFound, id)
	}
	def.Status = status
	return nil
}

func (f *fakeDefs) status(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defs[id].Status
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.ScoreEvent
	err    error
}

func (p *fakePublisher) PublishScoreEvent(_ context.Context, ev models.ScoreEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) published() []models.ScoreEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ScoreEvent(nil), p.events...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	gs      *GameServer
	defs    *fakeDefs
	pub     *fakePublisher
	archive *cache.ResultArchive
	clock   *fakeClock
	rec     *metrics.Recorder
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	env := &testEnv{
		defs:    newFakeDefs(),
		pub:     &fakePublisher{},
		archive: cache.NewResultArchive(rdb, time.Hour),
		clock:   &fakeClock{t: time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)},
		rec:     metrics.NewRecorder(),
	}
	env.gs = NewGameServer(env.defs, quietLogger(),
		WithScorePublisher(env.pub),
		WithResultArchive(env.archive),
		WithMetrics(env.rec),
		WithServerClock(env.clock.Now),
		WithSessionOptions(session.WithClock(env.clock.Now)),
	)
	return env
}

// seedGame registers a persisted game with one round per entry of questionCounts.
func (env *testEnv) seedGame(questionCounts []int, teamNames ...string) (uuid.UUID, []uuid.UUID) {
	def := &models.GameDefinition{ID: uuid.New(), Name: "Pub quiz", Status: models.GameStatusCreated}
	for i, qc := range questionCounts {
		def.Rounds = append(def.Rounds, models.RoundDefinition{
			Number: i + 1, QuestionCount: qc, QuestionCost: 1, QuestionTimeSec: 60,
		})
	}
	ids := make([]uuid.UUID, len(teamNames))
	for i, n := range teamNames {
		ids[i] = uuid.New()
		def.Teams = append(def.Teams, models.TeamDefinition{ID: ids[i], Name: n})
	}
	env.defs.add(def)
	return def.ID, ids
}

var adminClaims = auth.Claims{Subject: "host", Role: auth.RoleAdmin}

func TestStartGame(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, _ := env.seedGame([]int{6, 6, 6}, "Alpha", "Beta")

	summary, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, StartSummary{Name: "Pub quiz", Teams: []string{"Alpha", "Beta"}, RoundCount: 3, QuestionCount: 6}, summary)
	assert.Equal(t, models.GameStatusStarted, env.defs.status(gameID))
	assert.Equal(t, 1, env.gs.Registry.Len())

	_, err = env.gs.StartGame(ctx, gameID)
	assert.ErrorIs(t, err, game.ErrAlreadyStarted)

	totals, err := env.gs.GetTotalScores(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Alpha": 0, "Beta": 0}, totals, "first session unaffected")
}

func TestStartGameUnknown(t *testing.T) {
	env := setupServer(t)
	_, err := env.gs.StartGame(context.Background(), uuid.New())
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestStartGameWithoutRounds(t *testing.T) {
	env := setupServer(t)
	gameID, _ := env.seedGame(nil, "Alpha")

	_, err := env.gs.StartGame(context.Background(), gameID)
	assert.ErrorIs(t, err, game.ErrInvalidState)
	assert.Equal(t, 0, env.gs.Registry.Len())
}

func TestStartGameRollsBackOnStatusFailure(t *testing.T) {
	env := setupServer(t)
	gameID, _ := env.seedGame([]int{2}, "Alpha")
	env.defs.statusErr = errors.New("db unavailable")

	_, err := env.gs.StartGame(context.Background(), gameID)
	require.Error(t, err)
	assert.Equal(t, 0, env.gs.Registry.Len())

	_, err = env.gs.Registry.Get(gameID)
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestRecordScorePublishesEvent(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{2, 2}, "Alpha")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)

	require.NoError(t, env.gs.RecordScore(ctx, gameID, adminClaims, ScoreInput{TeamID: teams[0], Round: 2, Question: 1, Score: 5}))

	events := env.pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, models.ScoreEvent{
		GameID:    gameID,
		TeamID:    teams[0],
		Round:     2,
		Question:  1,
		Score:     5,
		ActorID:   "host",
		Timestamp: env.clock.Now(),
	}, events[0])

	view, err := env.gs.GetScoreTable(ctx, gameID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0}, {5, 0}}, view.Table.AsMap()["Alpha"])
}

func TestRecordScoreRejects(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{2}, "Alpha")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)

	cases := []struct {
		name string
		in   ScoreInput
		want error
	}{
		{"round zero", ScoreInput{TeamID: teams[0], Round: 0, Question: 1}, game.ErrOutOfRange},
		{"round past end", ScoreInput{TeamID: teams[0], Round: 2, Question: 1}, game.ErrOutOfRange},
		{"question past end", ScoreInput{TeamID: teams[0], Round: 1, Question: 3}, game.ErrOutOfRange},
		{"unknown team", ScoreInput{TeamID: uuid.New(), Round: 1, Question: 1}, game.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := env.gs.RecordScore(ctx, gameID, adminClaims, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, env.pub.published())

	err = env.gs.RecordScore(ctx, uuid.New(), adminClaims, ScoreInput{TeamID: teams[0], Round: 1, Question: 1})
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestRecordScoreSurvivesPublishFailure(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{1}, "Alpha")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)
	env.pub.err = errors.New("redis down")

	require.NoError(t, env.gs.RecordScore(ctx, gameID, adminClaims, ScoreInput{TeamID: teams[0], Round: 1, Question: 1, Score: 1}))

	totals, err := env.gs.GetTotalScores(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, totals["Alpha"])
}

func TestScoreTableVisibility(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{2}, "Alpha", "Beta")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)
	require.NoError(t, env.gs.SetIntrigue(ctx, gameID, true))

	player := auth.Claims{Subject: "p1", Role: auth.RoleUser, TeamID: teams[1]}
	view, err := env.gs.GetScoreTable(ctx, gameID, player)
	require.NoError(t, err)
	assert.True(t, view.IsIntrigue)
	assert.Equal(t, []string{"Beta"}, view.Table.Names())
	assert.Equal(t, 1, view.RoundsCount)
	assert.Equal(t, 2, view.QuestionsCount)

	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleSuperAdmin} {
		view, err = env.gs.GetScoreTable(ctx, gameID, auth.Claims{Subject: "a", Role: role})
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "Beta"}, view.Table.Names())
	}

	_, err = env.gs.GetScoreTable(ctx, gameID, auth.Claims{Subject: "p2", Role: auth.RoleUser})
	assert.ErrorIs(t, err, game.ErrMissingTeamAssociation)
	_, err = env.gs.GetDelimitedReport(ctx, gameID, auth.Claims{Subject: "p2", Role: auth.RoleUser})
	assert.ErrorIs(t, err, game.ErrMissingTeamAssociation)

	require.NoError(t, env.gs.SetIntrigue(ctx, gameID, false))
	view, err = env.gs.GetScoreTable(ctx, gameID, player)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, view.Table.Names())
}

func TestDelimitedReportScenario(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{2, 2}, "Alpha")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)

	for _, s := range []ScoreInput{
		{TeamID: teams[0], Round: 1, Question: 1, Score: 10},
		{TeamID: teams[0], Round: 2, Question: 1, Score: 5},
		{TeamID: teams[0], Round: 2, Question: 2, Score: 5},
	} {
		require.NoError(t, env.gs.RecordScore(ctx, gameID, adminClaims, s))
	}

	report, err := env.gs.GetDelimitedReport(ctx, gameID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, "Team;Total;Round 1;Question 1;Question 2;Round 2;Question 1;Question 2\nAlpha;20;10;10;0;10;5;5", report)

	again, err := env.gs.GetDelimitedReport(ctx, gameID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestExpiredGameIsArchived(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{1}, "Alpha", "Beta")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)
	require.NoError(t, env.gs.RecordScore(ctx, gameID, adminClaims, ScoreInput{TeamID: teams[0], Round: 1, Question: 1, Score: 3}))
	require.NoError(t, env.gs.SetIntrigue(ctx, gameID, true))

	env.clock.Advance(session.DefaultTTL)
	assert.Equal(t, 1, env.gs.Registry.Sweep())

	totals, err := env.gs.GetTotalScores(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Alpha": 3, "Beta": 0}, totals)

	// the archived copy keeps the visibility rule
	view, err := env.gs.GetScoreTable(ctx, gameID, auth.Claims{Subject: "p", Role: auth.RoleUser, TeamID: teams[1]})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, view.Table.Names())

	assert.ErrorIs(t, env.gs.SetIntrigue(ctx, gameID, false), game.ErrFinished)
	err = env.gs.RecordScore(ctx, gameID, adminClaims, ScoreInput{TeamID: teams[0], Round: 1, Question: 1, Score: 1})
	assert.ErrorIs(t, err, game.ErrFinished)

	info, err := env.gs.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.False(t, info.IsStarted)

	// a fresh start drops the archive
	_, err = env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)
	_, err = env.archive.LoadFinal(ctx, gameID)
	assert.ErrorIs(t, err, cache.ErrNotArchived)
	totals, err = env.gs.GetTotalScores(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, totals["Alpha"])
}

func TestResetGameDoesNotArchive(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, _ := env.seedGame([]int{1}, "Alpha")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)

	env.gs.ResetGame(gameID)
	env.gs.ResetGame(gameID)

	_, err = env.gs.GetTotalScores(ctx, gameID)
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.ErrorIs(t, env.gs.SetIntrigue(ctx, gameID, true), game.ErrNotFound)
	_, err = env.archive.LoadFinal(ctx, gameID)
	assert.ErrorIs(t, err, cache.ErrNotArchived)
}

func TestGetGame(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, _ := env.seedGame([]int{4, 2}, "Alpha", "Beta")

	info, err := env.gs.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, GameInfo{
		ID:            gameID,
		Name:          "Pub quiz",
		Status:        models.GameStatusCreated,
		IsStarted:     false,
		Teams:         []string{"Alpha", "Beta"},
		RoundCount:    2,
		QuestionCount: 4,
	}, info)

	_, err = env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)
	info, err = env.gs.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.True(t, info.IsStarted)
	assert.Equal(t, models.GameStatusStarted, info.Status)

	_, err = env.gs.GetGame(ctx, uuid.New())
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestChangeGameStatus(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, _ := env.seedGame([]int{1}, "Alpha")

	require.NoError(t, env.gs.ChangeGameStatus(ctx, gameID, models.GameStatusFinished))
	assert.Equal(t, models.GameStatusFinished, env.defs.status(gameID))
	assert.ErrorIs(t, env.gs.ChangeGameStatus(ctx, uuid.New(), "x"), game.ErrNotFound)
}

func TestPresence(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, _ := env.seedGame([]int{1}, "Alpha")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)

	env.gs.JoinPresence(gameID, auth.RoleAdmin, "host")
	env.gs.JoinPresence(gameID, auth.RoleUser, "p2")
	env.gs.JoinPresence(gameID, auth.RoleUser, "p1")
	env.gs.LeavePresence(gameID, auth.RoleUser, "p2")

	p, err := env.gs.Presence(gameID)
	require.NoError(t, err)
	assert.Equal(t, session.Presence{Admins: []string{"host"}, Users: []string{"p1"}}, p)

	_, err = env.gs.Presence(uuid.New())
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestConcurrentRecordScore(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	gameID, teams := env.seedGame([]int{5, 5}, "Alpha", "Beta")
	_, err := env.gs.StartGame(ctx, gameID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, team := range teams {
		for r := 1; r <= 2; r++ {
			for q := 1; q <= 5; q++ {
				wg.Add(1)
				go func(team uuid.UUID, r, q int) {
					defer wg.Done()
					assert.NoError(t, env.gs.RecordScore(ctx, gameID, adminClaims, ScoreInput{TeamID: team, Round: r, Question: q, Score: 1}))
				}(team, r, q)
			}
		}
	}
	wg.Wait()

	totals, err := env.gs.GetTotalScores(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Alpha": 10, "Beta": 10}, totals)
	assert.Len(t, env.pub.published(), 20)
}

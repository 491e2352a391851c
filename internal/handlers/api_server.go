// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/trivia/internal/metrics"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/sirupsen/logrus"
)

// APIConfig holds what the router needs besides the GameServer.
type APIConfig struct {
	Logger           logrus.FieldLogger
	Metrics          *metrics.Recorder
	WSOriginPatterns []string
}

// NewAPIHandler wires every game route behind the logging middleware.
func NewAPIHandler(gs *GameServer, cfg APIConfig) http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(cfg.Logger, cfg.Metrics)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, logged(h))
	}

	handle("GET /games/{gameID}", GetGameHandler(gs))
	handle("POST /games/{gameID}/start", StartGameHandler(gs))
	handle("POST /games/{gameID}/reset", ResetGameHandler(gs))
	handle("PATCH /games/{gameID}/intrigue", SetIntrigueHandler(gs))
	handle("PATCH /games/{gameID}/status", ChangeStatusHandler(gs))
	handle("POST /games/{gameID}/scores", RecordScoreHandler(gs))
	handle("GET /games/{gameID}/result", GameResultHandler(gs))
	handle("GET /games/{gameID}/table", ScoreTableHandler(gs))
	handle("GET /games/{gameID}/report", ReportHandler(gs))
	handle("GET /games/{gameID}/presence", PresenceHandler(gs))
	handle("GET /games/{gameID}/ws", GameWSHandler(cfg.Logger, gs, cfg.WSOriginPatterns))

	mux.Handle("GET /metrics", cfg.Metrics.Handler())
	return mux
}

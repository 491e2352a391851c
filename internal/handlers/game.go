// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// GetGameHandler returns the persisted game and whether it is live.
func GetGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		info, err := gs.GetGame(r.Context(), gameID)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// StartGameHandler opens a live session for the game. Admin only.
func StartGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		summary, err := gs.StartGame(r.Context(), gameID)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// ResetGameHandler drops the live session. Admin only.
func ResetGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		gs.ResetGame(gameID)
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// SetIntrigueHandler expects {"isIntrigue": bool}. Admin only.
func SetIntrigueHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		var body struct {
			IsIntrigue *bool `json:"isIntrigue"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsIntrigue == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "isIntrigue is required"})
			return
		}
		if err := gs.SetIntrigue(r.Context(), gameID, *body.IsIntrigue); err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// ChangeStatusHandler expects {"status": "..."}. Admin only.
func ChangeStatusHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Status) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "status is required"})
			return
		}
		if err := gs.ChangeGameStatus(r.Context(), gameID, body.Status); err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// RecordScoreHandler expects a ScoreInput with 1-based round and question. Admin only.
func RecordScoreHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		var in ScoreInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad score payload"})
			return
		}
		if err := gs.RecordScore(r.Context(), gameID, claims, in); err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// GameResultHandler returns every team's total.
func GameResultHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		totals, err := gs.GetTotalScores(r.Context(), gameID)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"totalScoreForAllTeams": totals})
	}
}

// ScoreTableHandler returns the score table the caller may see.
func ScoreTableHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		view, err := gs.GetScoreTable(r.Context(), gameID, claims)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ReportHandler returns the delimited report as {"totalTable": text}, or as a plain
// text body with ?format=text.
func ReportHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		report, err := gs.GetDelimitedReport(r.Context(), gameID, claims)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}
		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(report))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"totalTable": report})
	}
}

// PresenceHandler lists connected admins and users. Admin only.
func PresenceHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		p, err := gs.Presence(gameID)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (gs *GameServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if statusForError(err) == http.StatusInternalServerError {
		gs.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeError(w, err)
}

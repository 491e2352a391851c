package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/game"
)

const authCookieName = "authorization"

var (
	errMissingToken = errors.New("missing auth token")
	errNotAdmin     = errors.New("admin role required")
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// tokenFromRequest prefers a Bearer header and falls back to the authorization cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return extractCookieToken(r.Header.Get("Cookie"), authCookieName)
}

// authenticate verifies the caller's token.
func authenticate(r *http.Request) (auth.Claims, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return auth.Claims{}, errMissingToken
	}
	return auth.AuthenticateJWT(token)
}

// requireClaims writes 401 and returns false when the caller is not authenticated.
func requireClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	c, err := authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody(err))
		return auth.Claims{}, false
	}
	return c, true
}

// requireAdmin also writes 403 for user-class callers.
func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	c, ok := requireClaims(w, r)
	if !ok {
		return auth.Claims{}, false
	}
	if !c.Role.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorBody(errNotAdmin))
		return auth.Claims{}, false
	}
	return c, true
}

// gameIDFromPath parses the {gameID} path segment, writing 400 on failure.
func gameIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("gameID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid game id"})
		return uuid.Nil, false
	}
	return id, true
}

// statusForError maps game errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, game.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, game.ErrMissingTeamAssociation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrFinished):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"message": err.Error()}
}

// writeError reports err with the status statusForError picks. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		writeJSON(w, status, map[string]string{"message": "internal error"})
		return
	}
	writeJSON(w, status, errorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

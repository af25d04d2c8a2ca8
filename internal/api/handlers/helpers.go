package handlers

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/auth"
	"github.com/obscyra/rooms/internal/utils"
)

// authorToken and deviceID read the §6 "Headers" pair every protected
// route accepts.
func authorToken(r *http.Request) string {
	return r.Header.Get("X-Author-Token")
}

func deviceID(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// decodeJSON decodes the request body into v, writing a bad_input response
// and reporting false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, apierr.BadInputf("malformed request body"))
		return false
	}
	return true
}

// parseRoomID validates and parses a room id path/query value, writing a
// bad_input response and reporting false on failure.
func parseRoomID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if !auth.IsValidRoomID(raw) {
		utils.JSONError(w, apierr.BadInputf("invalid room id"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid room id"))
		return uuid.Nil, false
	}
	return id, true
}

// authorizeAuthorOrGuest resolves (room, token, device) to a principal and
// writes the §7 403 response if neither matches.
func authorizeAuthorOrGuest(w http.ResponseWriter, roomID, token, device string) (auth.Principal, bool) {
	principal, err := D.Auth.Authorize(roomID, token, device)
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid room id"))
		return auth.Unauthorized, false
	}
	if principal == auth.Unauthorized {
		utils.JSONError(w, apierr.Unauthorizedf("not authorized for this room"))
		return auth.Unauthorized, false
	}
	return principal, true
}

// requireAuthorToken is the strict §4.A gate: only the author token holder
// may proceed.
func requireAuthorToken(w http.ResponseWriter, roomID, token string) bool {
	if !D.Auth.IsAuthorToken(roomID, token) {
		utils.JSONError(w, apierr.Unauthorizedf("invalid author token"))
		return false
	}
	return true
}

func ok(w http.ResponseWriter, data any) {
	utils.JSONResponse(w, http.StatusOK, utils.Payload{Success: true, Data: data})
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// clientIP resolves the trust-proxy chain for handlers that need the IP
// outside of an access-log event (rate limiting, invite).
func clientIP(r *http.Request) string {
	return accesslog.ResolveIP(r)
}

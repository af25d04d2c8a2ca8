package utils

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/obscyra/rooms/internal/apierr"
)

type Payload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSONResponse sends a JSON response with given status, success flag, and payload
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// JSONError renders a typed apierr.Error per the §7 taxonomy, setting
// Retry-After when the kind carries one. Internal errors never leak their
// message to the client (§7 propagation policy).
func JSONError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.Internalf("internal error")
	}
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	message := apiErr.Message
	if apiErr.Kind == apierr.Internal {
		message = "internal error"
	}
	JSONResponse(w, apiErr.Kind.HTTPStatus(), Payload{
		Success: false,
		Message: message,
		Data:    apiErr.Data,
	})
}

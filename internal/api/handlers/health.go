package handlers

import (
	"net/http"
	"time"
)

// GET /api/health
func Health(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/obscyra/rooms/internal/config"
	"github.com/obscyra/rooms/internal/utils"
)

// AdminBearer gates the §6 /analytics and /analytics-admin routes. Any
// failure — missing header, malformed token, bad signature, wrong role
// claim — answers 404, not 401/403, per §6's "404 on missing token
// (deliberate)": the route's existence is not signalled to an
// unauthenticated caller.
func AdminBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, hasBearer := strings.CutPrefix(header, "Bearer ")
		if !hasBearer || tokenStr == "" {
			notFound(w)
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(config.Envs.AdminToken), nil
		})
		if err != nil || !token.Valid {
			notFound(w)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["role"] != "admin" {
			notFound(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusNotFound, utils.Payload{Success: false, Message: "not found"})
}

package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"omega/internal/models"
	"strings"

	"github.com/gorilla/mux"
)

// ownerTokenMiddleware guards the admin routes with the owner token. The
// Authorization header may carry "Bearer <token>" or the bare token. An
// empty owner token disables the admin surface.
func ownerTokenMiddleware(ownerToken string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isOwnerToken(bearerToken(r), ownerToken) {
				slog.Warn("Admin access denied", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Forbidden", models.ErrorCodeForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return header
}

// isOwnerToken compares in constant time.
func isOwnerToken(candidate, ownerToken string) bool {
	if ownerToken == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(ownerToken)) == 1
}

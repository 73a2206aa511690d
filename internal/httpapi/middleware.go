package httpapi

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const SessionHeader = "X-Session-ID"

type sessionKey struct{}

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SessionMiddleware reads the shopper's session id from X-Session-ID,
// generating one when absent, and echoes it back on the response.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = uuid.NewString()
		} else if !validSessionID.MatchString(id) {
			respondError(w, http.StatusBadRequest, "invalid_session", "X-Session-ID must be 1-128 letters, digits, '-' or '_'")
			return
		}

		w.Header().Set(SessionHeader, id)
		ctx := context.WithValue(r.Context(), sessionKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}

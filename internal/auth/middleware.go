// ABOUTME: HTTP middleware for session authentication on API endpoints
// ABOUTME: Resolves the session cookie and adds Identity to the request context

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// rejectJSON writes a JSON error body with the right Content-Type;
// http.Error would stamp the body text/plain.
func rejectJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// RequireUser creates an HTTP middleware that rejects unauthenticated
// requests with a 401 JSON body and otherwise attaches the Identity to the
// request context.
func RequireUser(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.Resolve(r)
			if err != nil {
				if errors.Is(err, ErrNoSession) {
					rejectJSON(w, http.StatusUnauthorized, "not authenticated")
					return
				}
				rejectJSON(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin creates an HTTP middleware that requires the admin role.
// Must be used after RequireUser.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				rejectJSON(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !id.IsAdmin() {
				rejectJSON(w, http.StatusForbidden, "admin role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

// AdminTokenHeader carries the operator secret for admin routes.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken admits requests whose X-Admin-Token header equals token.
// An empty token closes the routes entirely.
func AdminToken(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(AdminTokenHeader))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				logger.FromContext(r.Context()).Warn("admin route refused")
				http.Error(w, "admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/resumeup/backend/internal/contextkeys"
	"github.com/resumeup/backend/internal/handler"
)

// AdminOnly rejects callers without the admin role. Must run after Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(contextkeys.UserRole).(string); role != "admin" {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

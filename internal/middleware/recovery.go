package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/resumeup/backend/internal/handler"
)

// Recovery converts a handler panic into a 500 response and keeps the
// process alive. The payment callback in particular must never take the
// server down on a malformed event.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("[Recovery] panic on %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
				handler.JSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

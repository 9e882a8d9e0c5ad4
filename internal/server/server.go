package server

import (
	"net/http"

	"github.com/charmbracelet/log"
)

// Middleware wraps a handler with extra behavior.
type Middleware func(http.Handler) http.Handler

// Handler serves a fixed set of paths on the callback listener.
type Handler interface {
	http.Handler
	Routes() []string
}

// NoStore marks every response uncacheable. The callback page is reached with a one-time authorization code.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, req)
	})
}

// newCallbackRouter mounts handler behind request logging and [NoStore].
func newCallbackRouter(handler Handler, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(RequestLogger(logger), NoStore)
	router.Handler(handler)
	return router
}

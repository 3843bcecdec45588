package web

import (
	"net/http"

	"github.com/kozaktomas/face-orienter/internal/web/handlers"
	"github.com/kozaktomas/face-orienter/internal/web/static"
)

func (s *Server) setupRoutes() {
	s.router.Post("/orient", s.orient.Orient)

	s.router.Get("/health", handlers.HealthCheck)
	s.router.Head("/health", handlers.HealthCheck)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Get("/", serveIndex)
}

func serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(static.IndexHTML())
}

// Package server serves the visualizer page, its websocket and a small JSON
// API.
package server

import (
	"context"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/hub"
)

type Server struct {
	handler    http.Handler
	addr       string
	httpServer *http.Server
	logger     *zap.SugaredLogger
}

func New(h *hub.Hub, b *hub.Broadcaster, ctrl hub.Controller, profiles ProfileSource,
	frontendFS fs.FS, addr string, logger *zap.SugaredLogger,
) *Server {
	mux := http.NewServeMux()

	// WebSocket endpoint
	upgrader := hub.NewUpgrader(hub.NewHandler(h, b, ctrl, logger.Named("ws")))
	mux.HandleFunc("/ws", handleWebSocket(upgrader, logger))
	mux.HandleFunc("/api/profiles", handleProfiles(profiles, logger))

	// Static files (frontend)
	fileServer := http.FileServer(http.FS(frontendFS))
	mux.Handle("/", minified(fileServer))

	return &Server{
		handler: mux,
		addr:    addr,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Infow("HTTP server listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Package web serves the JSON API: auth, request processing, and playlist
// views.
package web

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the API.
type Server struct {
	router chi.Router
	server *http.Server
	log    *log.Logger
}

// NewServer creates a new server around the given handlers.
func NewServer(addr string, handlers *Handlers, logger *log.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		router: router,
		log:    logger,
	}

	s.setupMiddleware()
	s.setupRoutes(handlers)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Request processing can spend several minutes in the tool loop.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the API.
func (s *Server) setupRoutes(h *Handlers) {
	s.router.Get("/api/status", h.Status)
	s.router.Get("/api/login", h.Login)
	s.router.Get("/callback", h.Callback)
	s.router.Post("/api/logout", h.Logout)

	s.router.Post("/api/request", h.ProcessRequest)

	s.router.Route("/api/playlists/{playlistID}", func(r chi.Router) {
		r.Get("/tracks", h.PlaylistTracks)
		r.Delete("/tracks", h.RemovePlaylistTrack)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.log.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

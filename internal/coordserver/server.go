package coordserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"beacon/internal/config"
	"beacon/internal/escalate"
	"beacon/internal/fanout"
	"beacon/internal/logging"
)

// Server is the coordination centre's HTTP boundary: report ingestion, the
// operator event stream, and escalation management.
type Server struct {
	cfg    *config.Config
	store  *escalate.Store
	engine *escalate.Engine
	hub    *fanout.Hub
	logger *slog.Logger
}

// New assembles the server around its collaborators.
func New(cfg *config.Config, store *escalate.Store, engine *escalate.Engine, hub *fanout.Hub, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		engine: engine,
		hub:    hub,
		logger: logging.NewComponentLogger(logger, "coordserver"),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.cfg.Coord.APIToken))

		r.Post("/sos", s.handleSOS)
		r.Post("/status", s.handleStatus)
		r.Post("/checkin", s.handleCheckin)
		r.Post("/message", s.handleMessage)
		r.Get("/events", s.handleEvents)
		r.Post("/mode", s.handleMode)
		r.Post("/broadcast", s.handleBroadcast)
		r.Get("/subjects", s.handleSubjects)
		r.Post("/escalations/{id}/ack", s.handleAcknowledge)
		r.Post("/escalations/{id}/resolve", s.handleResolve)
	})

	return r
}

// ListenAndServe runs the HTTP server until the context is cancelled, then
// shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Coord.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("coordination server listening", logging.String("bind", s.cfg.Coord.Bind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

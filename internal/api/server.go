package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cdens/WxServer/internal/domain"
	"github.com/cdens/WxServer/internal/ingest"
	"github.com/cdens/WxServer/internal/query"
	"github.com/cdens/WxServer/internal/store"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
}

// NewServer creates a new API server with all routes registered.
func NewServer(ing *ingest.Service, qry *query.Service, scenes *domain.SceneKeeper, loc *domain.LocationState, s store.Store, logger *slog.Logger) *Server {
	h := &Handlers{
		Ingest:    ing,
		Query:     qry,
		Scenes:    scenes,
		Location:  loc,
		Store:     s,
		Logger:    logger,
		StartTime: time.Now(),
	}

	mux := http.NewServeMux()

	// Sensor-facing writes.
	mux.HandleFunc("POST /api/v1/observations", h.PostObservation)
	mux.HandleFunc("POST /api/v1/lightning", h.PostStrike)
	mux.HandleFunc("POST /api/v1/position", h.PostPosition)

	// Viewer-facing reads.
	mux.HandleFunc("GET /api/v1/current", h.GetCurrent)
	mux.HandleFunc("GET /api/v1/historical", h.GetHistorical)
	mux.HandleFunc("POST /api/v1/historical", h.GetHistorical)
	mux.HandleFunc("GET /api/v1/scene", h.GetScene)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware (outermost runs first).
	var handler http.Handler = mux
	handler = SecurityHeaders(handler)
	handler = CORS("*")(handler)
	handler = Logger(handler)
	handler = RequestID(handler)
	handler = Recovery(handler)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h}
}

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	slog.Info("api server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetVersion sets the version string for the health endpoint.
func (s *Server) SetVersion(v string) { s.handlers.Version = v }

// SetStorageInfo sets storage driver and path for the health endpoint.
func (s *Server) SetStorageInfo(driver, path string) {
	s.handlers.StorageDriver = driver
	s.handlers.StoragePath = path
}

// Package api exposes the document workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/documents"
	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

type capturer interface {
	Capture(ctx context.Context, raw []byte) (*documents.CaptureResult, error)
}

type reviewer interface {
	ListPendingReview(ctx context.Context) ([]*model.Document, error)
	ListAll(ctx context.Context) (*documents.Listing, error)
	Get(ctx context.Context, id string) (*model.Document, error)
}

type approver interface {
	Approve(ctx context.Context, id, aprovador string) (*documents.ApprovalResult, error)
}

// payloadLinker hands out temporary links to archived request bodies.
type payloadLinker interface {
	PresignPayloadURL(ctx context.Context, id string) (string, time.Duration, error)
}

// Deps are the collaborators behind the routes. Archive may be nil.
type Deps struct {
	Intake   capturer
	Review   reviewer
	Approval approver
	Archive  payloadLinker
	DB       dbPinger
	Version  string
}

// Server exposes HTTP endpoints for capture, review and approval.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	log     *slog.Logger
	handler http.Handler
}

// New constructs a Server and its route table.
func New(log *slog.Logger, cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, log: log.With("component", "http")}
	s.handler = Chain(
		Recovery(s.log),
		RequestID,
		Logger(s.log),
		CORS,
	)(s.routes())
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	health := NewHealthHandler(s.deps.DB, s.deps.Version)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", health.Health)
	mux.HandleFunc("GET /live", health.Live)
	mux.HandleFunc("GET /ready", health.Ready)

	mux.HandleFunc("POST /captura", s.handleCapture)
	mux.HandleFunc("GET /documentos/pendentes", s.handlePending)
	mux.HandleFunc("GET /documentos/flexiveis", s.handleFlexible)
	mux.HandleFunc("GET /documentos/{id}", s.handleGet)
	mux.HandleFunc("GET /documentos/{id}/original-url", s.handleOriginalURL)
	mux.HandleFunc("PATCH /documentos/{id}/aprovar", s.handleApprove)
	return mux
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.log.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", s.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down api")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

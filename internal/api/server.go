// Package api exposes the ledger over JSON/HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/ledger"
)

// ActorHeader carries the caller's actor id. It is recorded as CreatedBy.
const ActorHeader = "X-Actor-ID"

// Server holds the handlers' dependencies.
type Server struct {
	ledger       *ledger.Service
	audit        *auditlog.Log
	log          *slog.Logger
	defaultActor string
	requestLog   bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithAuditLog records every successful write in the audit log.
func WithAuditLog(a *auditlog.Log) Option {
	return func(s *Server) { s.audit = a }
}

// WithDefaultActor sets the actor used when a request has no X-Actor-ID.
func WithDefaultActor(actor string) Option {
	return func(s *Server) { s.defaultActor = actor }
}

// WithRequestLog turns chi's per-request access log on or off.
func WithRequestLog(on bool) Option {
	return func(s *Server) { s.requestLog = on }
}

// NewServer creates a Server for svc.
func NewServer(svc *ledger.Service, opts ...Option) *Server {
	s := &Server{
		ledger:     svc,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		requestLog: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.requestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/businesses/{businessID}", func(r chi.Router) {
		r.Post("/journal-entries", s.postJournalEntry)
		r.Post("/income", s.postIncome)
		r.Post("/expenses", s.postExpense)

		r.Get("/accounts", s.listAccounts)
		r.Post("/accounts", s.createAccount)

		r.Get("/transactions", s.listTransactions)
	})

	r.Route("/transactions/{transactionID}", func(r chi.Router) {
		r.Get("/", s.getTransaction)
		r.Post("/reverse", s.reverseTransaction)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("starting ledger API", "addr", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) actor(r *http.Request) string {
	if a := r.Header.Get(ActorHeader); a != "" {
		return a
	}
	return s.defaultActor
}

// record writes an audit entry. The ledger write already committed, so a
// failure here is logged rather than returned to the caller.
func (s *Server) record(actor, action, details, number string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(actor, action, details, number); err != nil {
		s.log.Warn("audit log append failed", "action", action, "transaction", number, "error", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/exitguard"
	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/processor"
	"github.com/MikeSquared-Agency/arbiter/internal/store"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// Ledger is the read side of the database the handlers use.
type Ledger interface {
	GetClaim(ctx context.Context, id uuid.UUID) (ledger.Claim, error)
	GetPosition(ctx context.Context, claimID uuid.UUID, side ledger.Side, account string) (ledger.Position, error)
	SoldSince(ctx context.Context, claimID uuid.UUID, side ledger.Side, account string, since time.Time) (units.Shares, error)
	GetTrustSnapshot(ctx context.Context, claimID uuid.UUID) (*store.TrustSnapshot, error)
	ListTrustHistory(ctx context.Context, claimID uuid.UUID, limit int) ([]store.TrustHistoryPoint, error)
}

// Scorer computes scores on demand. *processor.Processor satisfies it.
type Scorer interface {
	Evaluate(ctx context.Context, claimID uuid.UUID) (processor.Scores, error)
	Rescore(ctx context.Context, claimID uuid.UUID) (processor.Scores, error)
}

// Pinger reports database reachability. *store.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Messaging reports the NATS connection state. *hermes.Client satisfies it.
type Messaging interface {
	Connected() bool
}

// Options wires the server to the rest of the service.
type Options struct {
	Port      int
	APIToken  string
	Curve     *curve.Curve
	Guard     *exitguard.Guard
	Ledger    Ledger
	Scorer    Scorer
	DB        Pinger
	Messaging Messaging
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	router *chi.Mux
	http   *http.Server
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewServer(opts Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		router: router,
		opts:   opts,
		logger: logger,
		now:    now,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/arbiter/status", s.status)

	router.Route("/api/v1/claims/{id}", func(r chi.Router) {
		r.Get("/trust", s.getTrust)
		r.Get("/trust/snapshot", s.getTrustSnapshot)
		r.Get("/trust/history", s.getTrustHistory)
		r.With(BearerAuthMiddleware(opts.APIToken)).Post("/rescore", s.rescore)

		r.Route("/{side}", func(r chi.Router) {
			r.Get("/buy", s.previewBuy)
			r.Get("/sell", s.previewSell)
			r.Get("/curve", s.curveData)
			r.Get("/exit-limit", s.exitLimit)
		})
	})

	router.Get("/api/v1/sell-reasons", s.listSellReasons)
	router.Get("/api/v1/sell-reasons/{reason}", s.getSellReason)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"agent":  "arbiter",
		"status": "active",
	}
	if s.opts.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.DB.Ping(ctx); err != nil {
			s.logger.Warn("database ping failed", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
		} else {
			resp["database"] = "ok"
		}
	}
	if s.opts.Messaging != nil {
		resp["nats_connected"] = s.opts.Messaging.Connected()
		if !s.opts.Messaging.Connected() {
			resp["status"] = "degraded"
		}
	}
	if s.opts.Curve != nil {
		cfg := s.opts.Curve.Config()
		resp["curve"] = map[string]string{
			"base_price": cfg.BasePrice.String(),
			"slope":      cfg.Slope.String(),
			"fee_rate":   cfg.FeeRate.String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

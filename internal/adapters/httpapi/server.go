package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/lendpool/internal/adapters/metrics"
	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const (
	defaultRatePerSec     = 5
	defaultBurst          = 10
	defaultRequestTimeout = 10 * time.Second
	shutdownGrace         = 5 * time.Second
	maxBodyBytes          = 1 << 16
)

// Pool es lo que la API necesita del engine.
type Pool interface {
	Snapshot() domain.Pool
	Register(ctx context.Context) (domain.Ticket, error)
	RegisterBorrower(ctx context.Context) (domain.Ticket, error)
	Lend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error)
	WithdrawLend(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error)
	Borrow(ctx context.Context, amount decimal.Decimal, t domain.Ticket) (domain.Bucket, error)
	Repay(ctx context.Context, tokens domain.Bucket, t domain.Ticket) (domain.Bucket, error)
	Lender(ctx context.Context, t domain.Ticket) (domain.LenderRecord, error)
	Borrower(ctx context.Context, t domain.Ticket) (domain.BorrowerRecord, error)
}

// Config agrupa los ajustes del servidor HTTP.
type Config struct {
	Addr           string
	RatePerSec     float64 // por cliente
	Burst          int
	RequestTimeout time.Duration
}

// Server expone el pool por HTTP/JSON.
type Server struct {
	cfg     Config
	pool    Pool
	metrics *metrics.Prometheus
	gather  prometheus.Gatherer
	limiter *clientLimiter
	router  http.Handler
}

// New construye el router. metrics y gather pueden ser nil (sin /metrics).
func New(cfg Config, pool Pool, m *metrics.Prometheus, gather prometheus.Gatherer) *Server {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		cfg:     cfg,
		pool:    pool,
		metrics: m,
		gather:  gather,
		limiter: newClientLimiter(cfg.RatePerSec, cfg.Burst),
	}
	s.router = s.buildRouter()
	return s
}

// Handler devuelve el router configurado.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.gather != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	r.Group(func(api chi.Router) {
		api.Use(s.limiter.middleware)
		api.Use(chimw.Timeout(s.cfg.RequestTimeout))

		api.Get("/pool", s.getPool)
		api.Post("/lenders", s.registerLender)
		api.Post("/borrowers", s.registerBorrower)
		api.Post("/position", s.getPosition)
		api.Post("/lend", s.lend)
		api.Post("/withdraw", s.withdraw)
		api.Post("/borrow", s.borrow)
		api.Post("/repay", s.repay)
	})
	return r
}

// ListenAndServe sirve hasta que ctx se cancela y luego cierra con gracia.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http: listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi.ListenAndServe: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi.ListenAndServe: shutdown: %w", err)
	}
	slog.Info("http: stopped")
	return nil
}

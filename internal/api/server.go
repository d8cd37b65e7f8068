package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/capnego/internal/domain"
	"github.com/xela07ax/capnego/internal/journal"
	"github.com/xela07ax/capnego/internal/lifecycle"
	"go.uber.org/zap"
)

// Engine - поверхность координатора, которую публикует лабораторный HTTP.
type Engine interface {
	Check(ctx context.Context, t domain.CapabilityType) domain.CapabilityResult
	Request(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext) (domain.CapabilityResult, error)
	RequestWithEducation(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext, showEducation bool) (domain.CapabilityResult, error)
	RequestWithProgressiveFallback(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext, maxAttempts int) (domain.CapabilityResult, error)
	RequestMultiple(ctx context.Context, types []domain.CapabilityType, contexts map[domain.CapabilityType]domain.RequestContext) (map[domain.CapabilityType]domain.CapabilityResult, error)
	Invalidate(t domain.CapabilityType)
	InvalidateAll()
	DeviceProfile(ctx context.Context) domain.DeviceProfile
	OpenPlatformSettings(ctx context.Context) error
}

// JournalReader - последние события журнала (RingSink).
type JournalReader interface {
	Recent(n int) []journal.Event
}

// SignalHandler - приёмник сигналов жизненного цикла (lifecycle.Revalidator).
type SignalHandler interface {
	Handle(ctx context.Context, s lifecycle.Signal)
	OnSettingsReturn(ctx context.Context, t domain.CapabilityType) domain.CapabilityResult
}

type Server struct {
	router  *chi.Mux
	logger  *zap.Logger
	engine  Engine
	journal JournalReader
	signals SignalHandler
	metrics prometheus.Gatherer
}

type Option func(*Server)

func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

func WithSignals(h SignalHandler) Option {
	return func(s *Server) { s.signals = h }
}

// WithMetrics публикует реестр на /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics = g }
}

// NewServer инициализирует роутер лаборатории со всеми зависимостями.
func NewServer(e Engine, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.Named("lab-api"),
		engine: e,
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/profile", s.getProfile)

		r.Route("/capabilities", func(r chi.Router) {
			r.Delete("/", s.invalidateAll)
			r.Post("/batch", s.requestBatch)
			r.Route("/{type}", func(r chi.Router) {
				r.Get("/", s.check)
				r.Delete("/", s.invalidate)
				r.Post("/request", s.request) // ?education=true или ?attempts=N, не вместе
			})
		})

		r.Post("/settings", s.openSettings)
		r.Post("/lifecycle", s.lifecycleSignal)
		r.Get("/journal", s.getJournal)
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

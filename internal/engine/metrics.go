package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: обращения к координатору по операциям
	RequestsTotal *prometheus.CounterVec

	// Итоговые статусы и их источник (fresh/cache/fallback)
	ResultsTotal *prometheus.CounterVec

	// Сколько раз реально дошли до ОС (single-flight и кэш должны держать это число низким)
	PlatformCalls *prometheus.CounterVec

	TimeoutsTotal *prometheus.CounterVec

	// Latency: включая ожидание диалога пользователем
	RequestDuration *prometheus.HistogramVec

	InFlight prometheus.Gauge

	CacheHits *prometheus.CounterVec

	// Saturation: состояние предохранителя моста (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Журнал: заполненность буфера (backpressure)
	JournalBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "capnego_requests_total",
			Help: "Total number of coordinator operations.",
		}, []string{"capability", "operation"}),

		ResultsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "capnego_results_total",
			Help: "Capability results by status and source.",
		}, []string{"capability", "status", "source"}),

		PlatformCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "capnego_platform_calls_total",
			Help: "Calls that reached the platform adapter.",
		}, []string{"capability", "operation"}),

		TimeoutsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "capnego_timeouts_total",
			Help: "Platform calls that did not answer within the profile budget.",
		}, []string{"capability"}),

		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capnego_request_duration_seconds",
			Help:    "Histogram of negotiation latencies.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"capability", "operation"}),

		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "capnego_inflight_requests",
			Help: "OS-facing operations currently in flight.",
		}),

		CacheHits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "capnego_cache_hits_total",
			Help: "Answers served without touching the platform.",
		}, []string{"capability", "operation"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "capnego_circuit_breaker_state",
			Help: "Current state of the platform bridge breaker (0=closed, 1=open).",
		}, []string{"family"}),

		JournalBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "capnego_journal_buffer_utilization",
			Help: "Current number of events in the journal buffer.",
		}),
	}
}

// Package metrics exposes the service's Prometheus registry and /healthz
// liveness server, grounded on the teacher's internal/metrics package
// (same promhttp + custom JSON health handler shape), with gauges and
// counters renamed to this domain.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus metric this service family emits.
type Registry struct {
	ArmedTotal    prometheus.Counter
	DisarmTotal   prometheus.Counter
	SignalsSeenTotal      *prometheus.CounterVec // labels: kind
	EntryPlacedTotal      prometheus.Counter
	EntryFailedTotal      prometheus.Counter
	BracketPlacedTotal    prometheus.Counter
	BracketFailedTotal    prometheus.Counter
	DuplicateSignalsTotal prometheus.Counter

	ReconcileRunsTotal           prometheus.Counter
	ReconcileInconsistenciesTotal prometheus.Counter
	ReconcileErrorsTotal        prometheus.Counter

	PELMessagesReclaimed prometheus.Counter

	ExchangeCircuitBreakerState prometheus.Gauge // 0=closed,1=open,2=half-open
	RedisCircuitBreakerState    prometheus.Gauge
	RedisCircuitBreakerTrips    prometheus.Counter

	CalcProcessDur prometheus.Histogram
	PlanBuildDur   prometheus.Histogram
}

// New registers and returns the full metrics set.
func New() *Registry {
	m := &Registry{
		ArmedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calc_armed_total", Help: "Total Arm signals emitted by the calculator",
		}),
		DisarmTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calc_disarm_total", Help: "Total Disarm signals emitted by the calculator",
		}),
		SignalsSeenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poller_signals_seen_total", Help: "Signals read off the signal stream, by kind",
		}, []string{"kind"}),
		EntryPlacedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_entry_placed_total", Help: "Entry orders placed successfully",
		}),
		EntryFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_entry_failed_total", Help: "Entry order placements that failed",
		}),
		BracketPlacedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_bracket_placed_total", Help: "SL/TP bracket orders placed successfully",
		}),
		BracketFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_bracket_failed_total", Help: "SL/TP bracket orders that failed to place",
		}),
		DuplicateSignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_duplicate_signals_total", Help: "Signals rejected as already processed (idempotency hit)",
		}),
		ReconcileRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_runs_total", Help: "Reconcile sweeps completed",
		}),
		ReconcileInconsistenciesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_inconsistencies_total", Help: "Inconsistencies found and reported during reconcile",
		}),
		ReconcileErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_errors_total", Help: "Per-bot reconcile errors (sweep continues past these)",
		}),
		PELMessagesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streams_pel_messages_reclaimed_total", Help: "Messages reclaimed from dead consumers via XCLAIM",
		}),
		ExchangeCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_circuit_breaker_state", Help: "Exchange HTTP circuit breaker state (0=closed,1=open,2=half-open)",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_circuit_breaker_state", Help: "Redis circuit breaker state (0=closed,1=open,2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redis_circuit_breaker_trips_total", Help: "Times the Redis circuit breaker tripped open",
		}),
		CalcProcessDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "calc_process_duration_seconds", Help: "Calculator per-candle processing latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		PlanBuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "plan_build_duration_seconds", Help: "Plan builder latency per arm signal",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.ArmedTotal, m.DisarmTotal, m.SignalsSeenTotal,
		m.EntryPlacedTotal, m.EntryFailedTotal, m.BracketPlacedTotal, m.BracketFailedTotal, m.DuplicateSignalsTotal,
		m.ReconcileRunsTotal, m.ReconcileInconsistenciesTotal, m.ReconcileErrorsTotal,
		m.PELMessagesReclaimed,
		m.ExchangeCircuitBreakerState, m.RedisCircuitBreakerState, m.RedisCircuitBreakerTrips,
		m.CalcProcessDur, m.PlanBuildDur,
	)
	return m
}

// HealthStatus is the liveness snapshot served at /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	DBOK           bool      `json:"db_ok"`
	DBLatencyMs    float64   `json:"db_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

func (h *HealthStatus) CheckDB(ctx context.Context, db *sql.DB) {
	if db == nil {
		return
	}
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.DBOK = err == nil
	h.DBLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				h.CheckDB(probeCtx, db)
				cancel()
			}
		}
	}()
}

func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.RedisConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	resp := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		DBOK           bool    `json:"db_ok"`
		DBLatencyMs    float64 `json:"db_latency_ms"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status: status, Uptime: time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected: h.RedisConnected, RedisLatencyMs: h.RedisLatencyMs,
		DBOK: h.DBOK, DBLatencyMs: h.DBLatencyMs, LastCheckAt: h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(resp)
}

// Server runs the /metrics + /healthz HTTP endpoint per binary.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
	log    *slog.Logger
}

func NewServer(addr string, health *HealthStatus, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		health: health, addr: addr, log: log,
		srv: &http.Server{Addr: addr, Handler: mux},
	}
}

func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics server error", "err", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

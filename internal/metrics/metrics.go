// Package metrics exposes screener Prometheus metrics and the /healthz probe.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"volscreener/internal/breaker"
	"volscreener/internal/model"
)

// Metrics holds all Prometheus metrics for the screener.
type Metrics struct {
	// Upstream calls (labels: op=history|quote, outcome=ok|empty|error|rejected)
	UpstreamCalls   *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec

	// Refresh cycles
	CycleDuration   prometheus.Histogram
	CyclesTotal     *prometheus.CounterVec // labels: result=live|degraded|failed
	LiveSuccesses   prometheus.Gauge
	SpikeCandidates prometheus.Gauge
	ResultRows      prometheus.Gauge
	Absences        *prometheus.CounterVec // labels: reason
	CapSources      *prometheus.CounterVec // labels: source

	// Circuit breakers (labels: name)
	BreakerState *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec

	// Distribution
	PublishErrors *prometheus.CounterVec // labels: sink
	WSClients     prometheus.Gauge

	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_upstream_calls_total",
			Help: "Upstream market-data calls by operation and outcome",
		}, []string{"op", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screener_upstream_duration_seconds",
			Help:    "Upstream market-data call latency, including limiter wait",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),

		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_cycle_duration_seconds",
			Help:    "Wall time of one screening cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_cycles_total",
			Help: "Screening cycles by result",
		}, []string{"result"}),
		LiveSuccesses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_live_volume_successes",
			Help: "Symbols with a valid live volume record in the last cycle",
		}),
		SpikeCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_spike_candidates",
			Help: "Symbols passing the spike-ratio threshold in the last cycle",
		}),
		ResultRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_result_rows",
			Help: "Rows in the last published result",
		}),
		Absences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_symbol_absences_total",
			Help: "Symbols excluded from the volume stage by reason",
		}, []string{"reason"}),
		CapSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_market_cap_resolutions_total",
			Help: "Market-cap resolutions by source",
		}, []string{"source"}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "screener_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open",
		}, []string{"name"}),

		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_publish_errors_total",
			Help: "Failed result publications by sink",
		}, []string{"sink"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_ws_clients",
			Help: "Connected websocket clients",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.UpstreamCalls,
		m.UpstreamLatency,
		m.CycleDuration,
		m.CyclesTotal,
		m.LiveSuccesses,
		m.SpikeCandidates,
		m.ResultRows,
		m.Absences,
		m.CapSources,
		m.BreakerState,
		m.BreakerTrips,
		m.PublishErrors,
		m.WSClients,
		m.MarketState,
	)
	return m
}

// ObserveUpstream implements marketdata.CallObserver.
func (m *Metrics) ObserveUpstream(op, outcome string, elapsed time.Duration) {
	m.UpstreamCalls.WithLabelValues(op, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveCycle records one finished screening result.
func (m *Metrics) ObserveCycle(r model.ScreenResult) {
	st := r.Stats
	m.CycleDuration.Observe(st.Duration.Seconds())
	result := "live"
	if r.Degraded {
		result = "degraded"
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.LiveSuccesses.Set(float64(st.LiveVolume))
	m.SpikeCandidates.Set(float64(st.SpikeCandidates))
	m.ResultRows.Set(float64(len(r.Rows)))
	for reason, n := range st.Absent {
		m.Absences.WithLabelValues(string(reason)).Add(float64(n))
	}
	for source, n := range map[model.CapSource]int{
		model.CapLive:     st.CapLive,
		model.CapCache:    st.CapCached,
		model.CapFallback: st.CapFallback,
		model.CapSample:   st.CapSample,
		model.CapNone:     st.CapZero,
	} {
		if n > 0 {
			m.CapSources.WithLabelValues(string(source)).Add(float64(n))
		}
	}
}

// ObserveFailedCycle counts a cycle that produced no result.
func (m *Metrics) ObserveFailedCycle() {
	m.CyclesTotal.WithLabelValues("failed").Inc()
}

// BreakerChanged is a breaker.OnStateChange hook.
func (m *Metrics) BreakerChanged(name string, from, to breaker.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
	if to == breaker.StateOpen {
		m.BreakerTrips.WithLabelValues(name).Inc()
	}
}

// PublishFailed counts a failed publication to sink.
func (m *Metrics) PublishFailed(sink string) {
	m.PublishErrors.WithLabelValues(sink).Inc()
}

// SetMarketOpen records the session state.
func (m *Metrics) SetMarketOpen(open bool) {
	if open {
		m.MarketState.Set(1)
	} else {
		m.MarketState.Set(0)
	}
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	LastCycleAt    time.Time `json:"last_cycle_at"`
	LastDegraded   bool      `json:"last_degraded"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`

	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`

	// StaleAfter marks the service degraded when no cycle finished within it.
	StaleAfter time.Duration
	now        func() time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{StartedAt: time.Now(), StaleAfter: staleAfter, now: time.Now}
}

func (h *HealthStatus) SetCycle(at time.Time, degraded bool) {
	h.mu.Lock()
	h.LastCycleAt = at
	h.LastDegraded = degraded
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
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

// StartLivenessChecker runs periodic dependency checks until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	overallStatus := "healthy"
	httpCode := http.StatusOK

	stale := h.LastCycleAt.IsZero() || (h.StaleAfter > 0 && now.Sub(h.LastCycleAt) > h.StaleAfter)
	if stale || h.LastDegraded || (h.RedisEnabled && !h.RedisConnected) {
		overallStatus = "degraded"
	}
	if h.LastCycleAt.IsZero() && h.StaleAfter > 0 && now.Sub(h.StartedAt) > h.StaleAfter {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	cycleAge := ""
	if !h.LastCycleAt.IsZero() {
		cycleAge = now.Sub(h.LastCycleAt).Round(time.Second).String()
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		LastCycleAt    string  `json:"last_cycle_at,omitempty"`
		CycleAge       string  `json:"cycle_age,omitempty"`
		Degraded       bool    `json:"degraded"`
		RedisEnabled   bool    `json:"redis_enabled"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
	}{
		Status:         overallStatus,
		Uptime:         now.Sub(h.StartedAt).Round(time.Second).String(),
		CycleAge:       cycleAge,
		Degraded:       h.LastDegraded,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
	}
	if !h.LastCycleAt.IsZero() {
		status.LastCycleAt = h.LastCycleAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *zap.Logger
}

// NewServer creates a metrics and health server. gatherer defaults to the
// default Prometheus registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:  log.With(zap.String("component", "metrics")),
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}

// ObserveCycle lets HealthStatus track cycles alongside Metrics.
func (h *HealthStatus) ObserveCycle(r model.ScreenResult) {
	h.SetCycle(r.GeneratedAt, r.Degraded)
}

// ObserveFailedCycle leaves the last good cycle in place; staleness shows
// up through StaleAfter.
func (h *HealthStatus) ObserveFailedCycle() {}

package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	BarFetchDur   prometheus.Histogram

	SignalsTotal      *prometheus.CounterVec // labels: type
	SignalsSuppressed prometheus.Counter
	FillsTotal        *prometheus.CounterVec // labels: kind
	TriggerClosures   *prometheus.CounterVec // labels: reason
	OpenRefusals      prometheus.Counter

	Balance       prometheus.Gauge
	UnrealizedPnL prometheus.Gauge
	OpenPositions prometheus.Gauge
	ClosedTrades  prometheus.Counter

	TransientFailures  *prometheus.CounterVec // labels: symbol
	InstrumentsEvicted prometheus.Counter
	InstrumentsSkipped prometheus.Counter
	ActiveInstruments  prometheus.Gauge

	NotifyFailures     prometheus.Counter
	CheckpointFailures prometheus.Counter
	ExportFailures     prometheus.Counter

	WSReconnects prometheus.Counter
	QuotesStale  prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_cycles_total",
			Help: "Total evaluation cycles completed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_cycle_duration_seconds",
			Help:    "Wall time of one full evaluation cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BarFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_bar_fetch_duration_seconds",
			Help:    "Latency of one OHLCV history fetch",
			Buckets: prometheus.DefBuckets,
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_signals_total",
			Help: "Signals emitted by the detector (by type)",
		}, []string{"type"}),
		SignalsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_signals_suppressed_total",
			Help: "Signals suppressed by the per-type cooldown",
		}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_fills_total",
			Help: "Simulated fills executed by the ledger (by kind)",
		}, []string{"kind"}),
		TriggerClosures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_trigger_closures_total",
			Help: "Positions closed by price triggers (target, stop-loss)",
		}, []string{"reason"}),
		OpenRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_open_refusals_total",
			Help: "Entry signals refused for insufficient balance",
		}),

		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_balance_usdt",
			Help: "Current available balance",
		}),
		UnrealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_unrealized_pnl_usdt",
			Help: "Aggregate unrealized profit across open positions",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_open_positions",
			Help: "Number of open positions",
		}),
		ClosedTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_closed_trades_total",
			Help: "Lifetime count of closed trades",
		}),

		TransientFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_transient_failures_total",
			Help: "Per-instrument data fetch or evaluation failures",
		}, []string{"symbol"}),
		InstrumentsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_instruments_evicted_total",
			Help: "Instruments removed after repeated consecutive failures",
		}),
		InstrumentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_instruments_skipped_total",
			Help: "Per-cycle skips of instruments still in cooldown",
		}),
		ActiveInstruments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_active_instruments",
			Help: "Instruments currently in the active set",
		}),

		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_notify_failures_total",
			Help: "Notification deliveries that returned an error",
		}),
		CheckpointFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_checkpoint_failures_total",
			Help: "Checkpoint writes that failed or were rejected by the breaker",
		}),
		ExportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_export_failures_total",
			Help: "Trade journal exports that returned an error",
		}),

		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_ws_reconnects_total",
			Help: "WebSocket quote stream reconnection attempts",
		}),
		QuotesStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_quotes_stale_total",
			Help: "Quote lookups that fell back to REST because the stream was stale",
		}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.BarFetchDur,
		m.SignalsTotal,
		m.SignalsSuppressed,
		m.FillsTotal,
		m.TriggerClosures,
		m.OpenRefusals,
		m.Balance,
		m.UnrealizedPnL,
		m.OpenPositions,
		m.ClosedTrades,
		m.TransientFailures,
		m.InstrumentsEvicted,
		m.InstrumentsSkipped,
		m.ActiveInstruments,
		m.NotifyFailures,
		m.CheckpointFailures,
		m.ExportFailures,
		m.WSReconnects,
		m.QuotesStale,
	)

	return m
}

// HealthStatus represents the engine's health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastCycleTime   time.Time `json:"last_cycle_time"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	ActiveSymbols   int       `json:"active_symbols"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycleTime(t time.Time) {
	h.mu.Lock()
	h.LastCycleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetActiveSymbols(n int) {
	h.mu.Lock()
	h.ActiveSymbols = n
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

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
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
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	// Persistence is optional at runtime: a dead store degrades the
	// engine but trading continues on in-memory state.
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
	}
	if h.ActiveSymbols == 0 {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	cycleAge := ""
	if !h.LastCycleTime.IsZero() {
		cycleAge = time.Since(h.LastCycleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		StreamConnected bool    `json:"stream_connected"`
		LastCycleTime   string  `json:"last_cycle_time"`
		CycleAge        string  `json:"cycle_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		ActiveSymbols   int     `json:"active_symbols"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StreamConnected: h.StreamConnected,
		LastCycleTime:   h.LastCycleTime.Format(time.RFC3339),
		CycleAge:        cycleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		ActiveSymbols:   h.ActiveSymbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// Package metrics exposes Prometheus metrics and a health endpoint for the
// reconciliation daemon.
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

// Metrics holds all Prometheus metrics for the reconciler.
type Metrics struct {
	OrdersProcessed    *prometheus.CounterVec // labels: kind, outcome
	AdjustmentsTotal   prometheus.Counter
	StockSubmitDur     prometheus.Histogram
	ExtractDur         prometheus.Histogram
	AllocationWarnings prometheus.Counter
	RetryExhausted     prometheus.Counter
	OpenTickets        prometheus.Gauge
	CommandsTotal      *prometheus.CounterVec // labels: kind

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		OrdersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_orders_processed_total",
			Help: "Orders processed by kind and outcome (synced, review, failed, skipped)",
		}, []string{"kind", "outcome"}),
		AdjustmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_stock_adjustments_total",
			Help: "Stock adjustments submitted to the backend",
		}),
		StockSubmitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconciler_stock_submit_duration_seconds",
			Help:    "Stock backend submission latency per adjustment",
			Buckets: prometheus.DefBuckets,
		}),
		ExtractDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconciler_extract_duration_seconds",
			Help:    "Structured extraction latency per message",
			Buckets: prometheus.DefBuckets,
		}),
		AllocationWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_allocation_warnings_total",
			Help: "Cost allocation anomalies degraded around (equal split, zero COGS)",
		}),
		RetryExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_retry_exhausted_total",
			Help: "Operations that failed after exhausting their retry policy",
		}),
		OpenTickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconciler_open_review_tickets",
			Help: "Review tickets currently open",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_commands_total",
			Help: "Operator commands received (by kind)",
		}, []string{"kind"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconciler_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker opened",
		}),
	}

	prometheus.MustRegister(
		m.OrdersProcessed,
		m.AdjustmentsTotal,
		m.StockSubmitDur,
		m.ExtractDur,
		m.AllocationWarnings,
		m.RetryExhausted,
		m.OpenTickets,
		m.CommandsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)
	return m
}

// HealthStatus tracks dependency health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastBatchAt    time.Time `json:"last_batch_at"`

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

func (h *HealthStatus) SetLastBatchAt(t time.Time) {
	h.mu.Lock()
	h.LastBatchAt = t
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

// CheckSQLite runs a trivial query and records latency + health.
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
				checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(checkCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(checkCtx, sqlDB)
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
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.RedisConnected {
		// Redis is an accelerator; losing it degrades but does not stop
		// the pipeline.
		overallStatus = "degraded"
	}

	lastBatch := ""
	if !h.LastBatchAt.IsZero() {
		lastBatch = h.LastBatchAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastBatchAt     string  `json:"last_batch_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastBatchAt:     lastBatch,
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

package api

import (
	"database/sql"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// Liveness ceiling: a goroutine leak past this marks the process unhealthy.
const maxGoroutines = 1000

// NewHealth returns a /live + /ready handler. Liveness checks the goroutine
// count; readiness pings db within pingTimeout. Check results are exported
// as gauges on reg.
func NewHealth(reg prometheus.Registerer, db *sql.DB, pingTimeout time.Duration) healthcheck.Handler {
	h := healthcheck.NewMetricsHandler(reg, "chbridge")
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	h.AddReadinessCheck("clickhouse", healthcheck.DatabasePingCheck(db, pingTimeout))
	return h
}

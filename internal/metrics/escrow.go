package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	escrowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_ops_total",
			Help: "Total escrow operations by op and result",
		},
		[]string{"op", "result"},
	)

	escrowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrow_op_duration_ms",
			Help:    "Escrow operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"op", "result"},
	)
)

// RecordEscrowOp 记录托管操作的业务指标
// op: "create" | "deposit" | "settle" | "cancel" | "claim_timeout"
// result: "success" | "fail"
func RecordEscrowOp(op, result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	o := strings.ToLower(strings.TrimSpace(op))
	escrowTotal.WithLabelValues(o, res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	escrowDuration.WithLabelValues(o, res).Observe(durMs)
}

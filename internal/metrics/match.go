package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_ops_total",
			Help: "Total match operations by op and result",
		},
		[]string{"op", "result"},
	)

	matchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_op_duration_ms",
			Help:    "Match operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"op", "result"},
	)
)

// RecordMatchOp 记录对局操作的业务指标
// op: "create" | "start" | "report_result" | "report_abandon"
func RecordMatchOp(op, result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	o := strings.ToLower(strings.TrimSpace(op))
	matchTotal.WithLabelValues(o, res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	matchDuration.WithLabelValues(o, res).Observe(durMs)
}

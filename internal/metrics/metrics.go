package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AttendanceOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "churchcare", Name: "attendance_ops_total", Help: "Attendance operations by op and outcome",
	}, []string{"op", "outcome"})
	NotificationsQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "churchcare", Name: "notifications_queued_total", Help: "Notification events enqueued",
	})
	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "churchcare", Name: "notifications_dropped_total", Help: "Notification events dropped (queue or delivery failure)",
	})
	RiskUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "churchcare", Name: "risk_updates_total", Help: "Member risk level writes by new level",
	}, []string{"level"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "churchcare", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(AttendanceOps, NotificationsQueued, NotificationsDropped, RiskUpdates, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AttendanceOps.WithLabelValues(op, outcome).Inc()
}

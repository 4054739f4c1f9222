// Package metrics holds the Prometheus collectors exposed on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_checkins_total",
		Help: "Confirmed check-ins by write outcome.",
	}, []string{"outcome"})

	ScanRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_scan_rejections_total",
		Help: "Camera activations refused, by reason.",
	}, []string{"reason"})

	DecodesIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_decodes_ignored_total",
		Help: "Decode events dropped because no scan could be accepted.",
	})

	AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_access_denied_total",
		Help: "Approval gate redirects by role and reason.",
	}, []string{"role", "reason"})

	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_approval_decisions_total",
		Help: "Administrator status changes by role and status.",
	}, []string{"role", "status"})

	RepairsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_checkin_repairs_pending",
		Help: "Partially written check-ins waiting for the repair job.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_checkin_sessions",
		Help: "Open teacher check-in sessions.",
	})
)

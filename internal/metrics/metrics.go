// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatches counts committed aid dispatches by aid type.
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aid_ledger_dispatches_total",
		Help: "Committed aid dispatches by aid type.",
	}, []string{"aid_type"})

	// DispatchRejections counts dispatch requests rejected by a rule.
	DispatchRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aid_ledger_dispatch_rejections_total",
		Help: "Dispatch requests rejected by a donation rule, by error code.",
	}, []string{"code"})

	// Contributions counts contribution state transitions.
	Contributions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aid_ledger_contributions_total",
		Help: "Contribution transitions by resulting status.",
	}, []string{"status"})
)

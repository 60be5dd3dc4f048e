package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for AutosaveWrites.
const (
	OutcomeSaved          = "saved"
	OutcomeAbandonedQuota = "abandoned_quota"
	OutcomeAbandonedError = "abandoned_error"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "autosave", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "autosave", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// AutosaveWrites counts write attempts by outcome. Abandoned saves are
	// never reported to callers, so this is where silent data loss shows up.
	AutosaveWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "autosave", Name: "writes_total", Help: "Revision write attempts by outcome."},
		[]string{"outcome"},
	)
	AutosaveCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "autosave", Name: "coalesced_total", Help: "Save requests that replaced a pending payload."},
	)
	AutosaveEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "autosave", Name: "evictions_total", Help: "Revisions evicted after the store ran out of capacity."},
	)
	RevisionRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "autosave", Name: "restores_total", Help: "Revision restores by outcome."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(AutosaveWrites)
	reg.MustRegister(AutosaveCoalesced)
	reg.MustRegister(AutosaveEvictions)
	reg.MustRegister(RevisionRestores)
}

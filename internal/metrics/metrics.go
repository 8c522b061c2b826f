// Package metrics defines package-level Prometheus metric variables for the
// anti-spam engine. Call Register() once at startup to expose them on the
// default registry, or RegisterWith() to use an isolated registry in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SubmissionsChecked counts every submission run through the classifier.
	SubmissionsChecked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "antispam_submissions_checked_total",
		Help: "Total submissions run through the heuristic classifier.",
	})

	// SpamDetected counts failed classifications, labelled by reason code.
	SpamDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "antispam_spam_detected_total",
		Help: "Failed classifications, by reason code.",
	}, []string{"reason"})

	// SessionBlocksSet counts newly imposed session blocks.
	SessionBlocksSet = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "antispam_session_blocks_set_total",
		Help: "Session blocks newly imposed after exceeding the strike allowance.",
	})

	// BlocksEnforced counts enforced rejections, labelled by scope
	// (session|address) and phase (compile|validate).
	BlocksEnforced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "antispam_blocks_enforced_total",
		Help: "Block enforcements, by scope (session|address) and phase (compile|validate).",
	}, []string{"scope", "phase"})

	// StoreErrors counts swallowed persistence/cache failures, by operation.
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "antispam_store_errors_total",
		Help: "Swallowed store/cache failures, by operation (reputation_write|status_read|audit_write|session).",
	}, []string{"op"})
)

// Register registers all metrics with prometheus.DefaultRegisterer.
// Call once at process startup.
func Register() {
	RegisterWith(prometheus.DefaultRegisterer)
}

// RegisterWith registers all metrics with the given registerer.
// Use an isolated prometheus.NewRegistry() in tests to avoid conflicts.
func RegisterWith(reg prometheus.Registerer) {
	reg.MustRegister(
		SubmissionsChecked,
		SpamDetected,
		SessionBlocksSet,
		BlocksEnforced,
		StoreErrors,
	)
}

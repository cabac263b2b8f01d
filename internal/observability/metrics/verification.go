package metrics

import "time"

// VerificationResult records the outcome of one artifact.
func VerificationResult(network, outcome string) {
	if !enabled {
		return
	}
	resultsTotal.WithLabelValues(network, outcome).Inc()
}

// ExplorerRequest records an explorer API call. Status is "ok", "error" or
// an HTTP status code.
func ExplorerRequest(action, status string) {
	if !enabled {
		return
	}
	explorerRequests.WithLabelValues(action, status).Inc()
}

// RunDuration records how long a run took.
func RunDuration(network string, d time.Duration) {
	if !enabled {
		return
	}
	runDuration.WithLabelValues(network).Observe(d.Seconds())
}

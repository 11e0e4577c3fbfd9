package reconcile

import "fmt"

// Alert types raised by the monitoring tick.
const (
	AlertHighFailureRate       = "HIGH_FAILURE_RATE"
	AlertHighInconsistencyRate = "HIGH_INCONSISTENCY_RATE"
	AlertHighStaleConnections  = "HIGH_STALE_CONNECTIONS"
)

type Alert struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Thresholds are the alerting limits evaluated on each monitoring tick.
type Thresholds struct {
	MaxFailureRate       float64 `json:"max_failure_rate"`
	MaxInconsistencyRate float64 `json:"max_inconsistency_rate"`
	MaxStaleConnections  int64   `json:"max_stale_connections"`
}

// CheckAlertConditions evaluates the derived rates against the thresholds.
// Alerts are emitted, never auto-remediated.
func CheckAlertConditions(snap Snapshot, th Thresholds) []Alert {
	alerts := []Alert{}
	if th.MaxFailureRate > 0 && snap.FailureRate > th.MaxFailureRate {
		alerts = append(alerts, Alert{
			Type:      AlertHighFailureRate,
			Message:   fmt.Sprintf("reconciliation failure rate %.2f exceeds %.2f", snap.FailureRate, th.MaxFailureRate),
			Value:     snap.FailureRate,
			Threshold: th.MaxFailureRate,
		})
	}
	if th.MaxInconsistencyRate > 0 && snap.InconsistencyRate > th.MaxInconsistencyRate {
		alerts = append(alerts, Alert{
			Type:      AlertHighInconsistencyRate,
			Message:   fmt.Sprintf("inconsistency rate %.2f exceeds %.2f", snap.InconsistencyRate, th.MaxInconsistencyRate),
			Value:     snap.InconsistencyRate,
			Threshold: th.MaxInconsistencyRate,
		})
	}
	if th.MaxStaleConnections > 0 && snap.StaleConnectionsCleaned > uint64(th.MaxStaleConnections) {
		alerts = append(alerts, Alert{
			Type:      AlertHighStaleConnections,
			Message:   fmt.Sprintf("%d stale connections cleaned exceeds %d", snap.StaleConnectionsCleaned, th.MaxStaleConnections),
			Value:     float64(snap.StaleConnectionsCleaned),
			Threshold: float64(th.MaxStaleConnections),
		})
	}
	return alerts
}

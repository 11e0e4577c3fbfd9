package heartbeat

import "expvar"

var (
	metricProbesSent     = expvar.NewInt("heartbeat_probes_sent_total")
	metricProbeResponses = expvar.NewInt("heartbeat_probe_responses_total")
	metricProbeTimeouts  = expvar.NewInt("heartbeat_probe_timeouts_total")
)

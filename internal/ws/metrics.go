package ws

import "expvar"

var (
	metricSessionsOpened  = expvar.NewInt("ws_sessions_opened_total")
	metricSessionsClosed  = expvar.NewInt("ws_sessions_closed_total")
	metricJoinsRejected   = expvar.NewInt("ws_joins_rejected_total")
	metricSessionsEvicted = expvar.NewInt("ws_sessions_evicted_total")
	metricEventsSent      = expvar.NewInt("ws_events_sent_total")
	metricRosterUpdates   = expvar.NewInt("ws_roster_updates_total")
)

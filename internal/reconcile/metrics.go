package reconcile

import "expvar"

var (
	metricSweepsTotal       = expvar.NewInt("reconcile_sweeps_total")
	metricSweepFailures     = expvar.NewInt("reconcile_sweep_failures_total")
	metricSweepConflicts    = expvar.NewInt("reconcile_sweep_conflicts_total")
	metricInconsistencies   = expvar.NewInt("reconcile_inconsistencies_total")
	metricAlertsRaised      = expvar.NewInt("reconcile_alerts_raised_total")
	metricActiveRoomsLast   = expvar.NewInt("reconcile_active_rooms_last")
	metricStaleCleanedTicks = expvar.NewInt("reconcile_cleanup_ticks_total")
)

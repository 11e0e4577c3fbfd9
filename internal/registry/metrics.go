package registry

import "expvar"

var (
	metricConnectionsRegistered = expvar.NewInt("registry_connections_registered_total")
	metricDisconnects           = expvar.NewInt("registry_disconnects_total")
	metricStaleCleaned          = expvar.NewInt("registry_stale_cleaned_total")
	metricRestoreCompleted      = expvar.NewInt("registry_restore_completed_total")
	metricRestoreSkipped        = expvar.NewInt("registry_restore_skipped_total")
)

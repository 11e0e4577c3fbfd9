package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// SyncConfig holds the intervals and thresholds for heartbeat monitoring,
// reconciliation sweeps and alerting. All durations arrive as milliseconds.
type SyncConfig struct {
	HeartbeatIntervalMS      int `env:"HEARTBEAT_INTERVAL_MS" envDefault:"10000"`
	ConnectionTimeoutMS      int `env:"CONNECTION_TIMEOUT_MS" envDefault:"30000"`
	ReconciliationIntervalMS int `env:"RECONCILIATION_INTERVAL_MS" envDefault:"30000"`
	CleanupIntervalMS        int `env:"CLEANUP_INTERVAL_MS" envDefault:"60000"`
	MonitoringIntervalMS     int `env:"MONITORING_INTERVAL_MS" envDefault:"60000"`
	StaleConnectionMS        int `env:"STALE_CONNECTION_MS" envDefault:"300000"`

	MaxFailureRate       float64 `env:"MAX_FAILURE_RATE" envDefault:"0.1"`
	MaxInconsistencyRate float64 `env:"MAX_INCONSISTENCY_RATE" envDefault:"0.05"`
	MaxStaleConnections  int64   `env:"MAX_STALE_CONNECTIONS" envDefault:"100"`

	OrphanGraceSweeps int `env:"ORPHAN_GRACE_SWEEPS" envDefault:"3"`
}

func LoadSync() (SyncConfig, error) {
	var cfg SyncConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c SyncConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c SyncConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMS) * time.Millisecond
}

func (c SyncConfig) ReconciliationInterval() time.Duration {
	return time.Duration(c.ReconciliationIntervalMS) * time.Millisecond
}

func (c SyncConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMS) * time.Millisecond
}

func (c SyncConfig) MonitoringInterval() time.Duration {
	return time.Duration(c.MonitoringIntervalMS) * time.Millisecond
}

func (c SyncConfig) StaleConnectionAge() time.Duration {
	return time.Duration(c.StaleConnectionMS) * time.Millisecond
}

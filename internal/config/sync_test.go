package config

import (
	"testing"
	"time"
)

func TestLoadSyncDefaults(t *testing.T) {
	cfg, err := LoadSync()
	if err != nil {
		t.Fatalf("LoadSync() error = %v", err)
	}
	if cfg.HeartbeatIntervalMS != 10000 {
		t.Fatalf("HeartbeatIntervalMS = %d, want 10000", cfg.HeartbeatIntervalMS)
	}
	if cfg.ConnectionTimeoutMS != 30000 {
		t.Fatalf("ConnectionTimeoutMS = %d, want 30000", cfg.ConnectionTimeoutMS)
	}
	if cfg.MaxFailureRate != 0.1 {
		t.Fatalf("MaxFailureRate = %v, want 0.1", cfg.MaxFailureRate)
	}
	if cfg.OrphanGraceSweeps != 3 {
		t.Fatalf("OrphanGraceSweeps = %d, want 3", cfg.OrphanGraceSweeps)
	}
}

func TestLoadSyncParseTypes(t *testing.T) {
	t.Setenv("RECONCILIATION_INTERVAL_MS", "60000")
	t.Setenv("MAX_STALE_CONNECTIONS", "25")
	t.Setenv("MAX_INCONSISTENCY_RATE", "0.2")

	cfg, err := LoadSync()
	if err != nil {
		t.Fatalf("LoadSync() error = %v", err)
	}
	if cfg.ReconciliationInterval() != time.Minute {
		t.Fatalf("ReconciliationInterval = %v, want 1m", cfg.ReconciliationInterval())
	}
	if cfg.MaxStaleConnections != 25 {
		t.Fatalf("MaxStaleConnections = %d, want 25", cfg.MaxStaleConnections)
	}
	if cfg.MaxInconsistencyRate != 0.2 {
		t.Fatalf("MaxInconsistencyRate = %v, want 0.2", cfg.MaxInconsistencyRate)
	}
}

func TestLoadServerRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/parlor?sslmode=disable")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
}

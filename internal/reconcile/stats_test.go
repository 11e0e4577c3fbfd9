package reconcile

import "testing"

func TestStatsDerivedRates(t *testing.T) {
	stats := NewStats()
	for i := 0; i < 8; i++ {
		stats.RecordSweep(true, 0)
	}
	stats.RecordSweep(false, 0)
	stats.RecordSweep(false, 0)

	snap := stats.Snapshot()
	if snap.TotalSweeps != 10 || snap.SuccessfulSweeps != 8 || snap.FailedSweeps != 2 {
		t.Fatalf("counters = %+v", snap)
	}
	if snap.SuccessRate != 0.8 {
		t.Fatalf("SuccessRate = %v, want 0.8", snap.SuccessRate)
	}
	if snap.FailureRate != 0.2 {
		t.Fatalf("FailureRate = %v, want 0.2", snap.FailureRate)
	}
}

func TestStatsInconsistencyAccounting(t *testing.T) {
	stats := NewStats()
	stats.RecordSweep(true, 3)
	stats.RecordSweep(true, 0)
	stats.RecordSweep(true, 1)
	stats.RecordCleanup(5)

	snap := stats.Snapshot()
	if snap.InconsistenciesFound != 4 {
		t.Fatalf("InconsistenciesFound = %d, want 4", snap.InconsistenciesFound)
	}
	if snap.InconsistencyRate < 0.66 || snap.InconsistencyRate > 0.67 {
		t.Fatalf("InconsistencyRate = %v, want 2/3", snap.InconsistencyRate)
	}
	if snap.AvgInconsistenciesPerSweep < 1.33 || snap.AvgInconsistenciesPerSweep > 1.34 {
		t.Fatalf("AvgInconsistenciesPerSweep = %v, want 4/3", snap.AvgInconsistenciesPerSweep)
	}
	if snap.StaleConnectionsCleaned != 5 {
		t.Fatalf("StaleConnectionsCleaned = %d, want 5", snap.StaleConnectionsCleaned)
	}
}

func TestStatsReset(t *testing.T) {
	stats := NewStats()
	stats.RecordSweep(true, 2)
	stats.RecordSweep(false, 0)
	stats.RecordCleanup(1)

	stats.Reset()

	snap := stats.Snapshot()
	if snap != (Snapshot{}) {
		t.Fatalf("snapshot after reset = %+v, want zeroes", snap)
	}
}

func TestCheckAlertConditionsFailureRate(t *testing.T) {
	stats := NewStats()
	for i := 0; i < 8; i++ {
		stats.RecordSweep(true, 0)
	}
	stats.RecordSweep(false, 0)
	stats.RecordSweep(false, 0)

	alerts := CheckAlertConditions(stats.Snapshot(), Thresholds{MaxFailureRate: 0.10})
	if len(alerts) != 1 || alerts[0].Type != AlertHighFailureRate {
		t.Fatalf("alerts = %+v, want one HIGH_FAILURE_RATE", alerts)
	}
	if alerts[0].Value != 0.2 || alerts[0].Threshold != 0.10 {
		t.Fatalf("alert = %+v, want value 0.2 threshold 0.10", alerts[0])
	}
}

func TestCheckAlertConditionsAllQuiet(t *testing.T) {
	stats := NewStats()
	for i := 0; i < 10; i++ {
		stats.RecordSweep(true, 0)
	}
	alerts := CheckAlertConditions(stats.Snapshot(), Thresholds{
		MaxFailureRate:       0.10,
		MaxInconsistencyRate: 0.05,
		MaxStaleConnections:  100,
	})
	if len(alerts) != 0 {
		t.Fatalf("alerts = %+v, want none", alerts)
	}
}

func TestCheckAlertConditionsStaleAndInconsistency(t *testing.T) {
	stats := NewStats()
	stats.RecordSweep(true, 4)
	stats.RecordCleanup(150)

	alerts := CheckAlertConditions(stats.Snapshot(), Thresholds{
		MaxInconsistencyRate: 0.5,
		MaxStaleConnections:  100,
	})
	types := map[string]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	if !types[AlertHighInconsistencyRate] || !types[AlertHighStaleConnections] {
		t.Fatalf("alerts = %+v, want inconsistency and stale alerts", alerts)
	}
}

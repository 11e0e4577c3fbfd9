package reconcile

import "sync"

// Stats accumulates sweep outcomes. Counters only go up; Reset is an
// explicit operator action.
type Stats struct {
	mu                      sync.Mutex
	totalSweeps             uint64
	successfulSweeps        uint64
	failedSweeps            uint64
	inconsistenciesFound    uint64
	sweepsWithDrift         uint64
	staleConnectionsCleaned uint64
}

// Snapshot is the read-side view with the derived rates filled in.
type Snapshot struct {
	TotalSweeps             uint64 `json:"total_sweeps"`
	SuccessfulSweeps        uint64 `json:"successful_sweeps"`
	FailedSweeps            uint64 `json:"failed_sweeps"`
	InconsistenciesFound    uint64 `json:"inconsistencies_found"`
	StaleConnectionsCleaned uint64 `json:"stale_connections_cleaned"`

	SuccessRate                float64 `json:"success_rate"`
	FailureRate                float64 `json:"failure_rate"`
	InconsistencyRate          float64 `json:"inconsistency_rate"`
	AvgInconsistenciesPerSweep float64 `json:"avg_inconsistencies_per_sweep"`
}

func NewStats() *Stats {
	return &Stats{}
}

// RecordSweep accounts one finished sweep.
func (s *Stats) RecordSweep(ok bool, inconsistencies int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSweeps++
	if ok {
		s.successfulSweeps++
	} else {
		s.failedSweeps++
	}
	if inconsistencies > 0 {
		s.sweepsWithDrift++
		s.inconsistenciesFound += uint64(inconsistencies)
	}
}

func (s *Stats) RecordCleanup(removed int) {
	if removed <= 0 {
		return
	}
	s.mu.Lock()
	s.staleConnectionsCleaned += uint64(removed)
	s.mu.Unlock()
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.totalSweeps = 0
	s.successfulSweeps = 0
	s.failedSweeps = 0
	s.inconsistenciesFound = 0
	s.sweepsWithDrift = 0
	s.staleConnectionsCleaned = 0
	s.mu.Unlock()
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		TotalSweeps:             s.totalSweeps,
		SuccessfulSweeps:        s.successfulSweeps,
		FailedSweeps:            s.failedSweeps,
		InconsistenciesFound:    s.inconsistenciesFound,
		StaleConnectionsCleaned: s.staleConnectionsCleaned,
	}
	if s.totalSweeps > 0 {
		total := float64(s.totalSweeps)
		snap.SuccessRate = float64(s.successfulSweeps) / total
		snap.FailureRate = float64(s.failedSweeps) / total
		snap.InconsistencyRate = float64(s.sweepsWithDrift) / total
		snap.AvgInconsistenciesPerSweep = float64(s.inconsistenciesFound) / total
	}
	return snap
}

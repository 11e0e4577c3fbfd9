package heartbeat

import (
	"sync"
	"testing"
	"time"
)

type captureProber struct {
	mu     sync.Mutex
	probes []time.Time
}

func (p *captureProber) SendProbe(_ string, sentAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes = append(p.probes, sentAt)
	return nil
}

func (p *captureProber) last() (time.Time, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.probes) == 0 {
		return time.Time{}, 0
	}
	return p.probes[len(p.probes)-1], len(p.probes)
}

func TestTimeoutDeclaresDisconnect(t *testing.T) {
	prober := &captureProber{}
	timedOut := make(chan string, 1)
	m := NewMonitor(10*time.Millisecond, 30*time.Millisecond, prober, nil,
		func(id, reason string) {
			if reason != ReasonTimeout {
				t.Errorf("reason = %q, want %q", reason, ReasonTimeout)
			}
			timedOut <- id
		})
	defer m.StopAll()

	m.Start("p1")
	select {
	case id := <-timedOut:
		if id != "p1" {
			t.Fatalf("timed out participant = %q, want p1", id)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout callback never fired")
	}
	if m.Monitoring("p1") {
		t.Fatal("monitor should stop itself after timeout")
	}
}

func TestResponseFeedsRoundTripAndReschedules(t *testing.T) {
	prober := &captureProber{}
	gotRTT := make(chan time.Duration, 4)
	m := NewMonitor(15*time.Millisecond, 200*time.Millisecond, prober,
		func(_ string, rtt time.Duration) { gotRTT <- rtt },
		func(id, reason string) { t.Errorf("unexpected timeout for %s (%s)", id, reason) })
	defer m.StopAll()

	m.Start("p1")
	sentAt, _ := prober.last()
	m.HandleResponse("p1", sentAt)

	select {
	case rtt := <-gotRTT:
		if rtt < 0 {
			t.Fatalf("negative rtt %v", rtt)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("round-trip callback never fired")
	}

	// A next probe must be scheduled after the interval.
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if _, n := prober.last(); n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second probe never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStaleResponseIgnored(t *testing.T) {
	prober := &captureProber{}
	gotRTT := make(chan time.Duration, 1)
	m := NewMonitor(time.Hour, time.Hour, prober,
		func(_ string, rtt time.Duration) { gotRTT <- rtt }, nil)
	defer m.StopAll()

	m.Start("p1")
	m.HandleResponse("p1", time.Now().Add(-time.Minute))

	select {
	case <-gotRTT:
		t.Fatal("stale response should not produce a round trip")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRestartCancelsPendingTimers(t *testing.T) {
	prober := &captureProber{}
	timedOut := make(chan string, 4)
	m := NewMonitor(time.Hour, 60*time.Millisecond, prober, nil,
		func(id, _ string) { timedOut <- id })
	defer m.StopAll()

	m.Start("p1")
	time.Sleep(20 * time.Millisecond)
	m.Start("p1") // restart before the first timeout fires

	// The first cycle's timeout must not fire; only the second cycle's may,
	// and only after its own full deadline.
	select {
	case <-timedOut:
		t.Fatal("cancelled cycle timeout fired")
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-timedOut:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("restarted cycle never timed out")
	}
}

func TestStopAllCancelsEverything(t *testing.T) {
	prober := &captureProber{}
	timedOut := make(chan string, 4)
	m := NewMonitor(time.Hour, 30*time.Millisecond, prober, nil,
		func(id, _ string) { timedOut <- id })

	m.Start("p1")
	m.Start("p2")
	m.StopAll()

	select {
	case id := <-timedOut:
		t.Fatalf("timeout fired for %s after StopAll", id)
	case <-time.After(100 * time.Millisecond):
	}
	m.Start("p3")
	if m.Monitoring("p3") {
		t.Fatal("monitor accepted Start after StopAll")
	}
}

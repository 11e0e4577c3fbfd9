package heartbeat

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ReasonTimeout is the disconnect reason reported when a probe deadline
// passes without a matching response.
const ReasonTimeout = "heartbeat_timeout"

// Prober pushes a liveness probe to a participant's transport session. The
// probe carries the send timestamp; the response must echo it.
type Prober interface {
	SendProbe(participantID string, sentAt time.Time) error
}

// Monitor runs one probe/timeout cycle per monitored participant:
// Idle -> Probing -> (Alive -> next probe | TimedOut -> stop). At most one
// probe timer and one timeout timer exist per participant at any moment.
type Monitor struct {
	interval time.Duration
	timeout  time.Duration
	prober   Prober

	onRoundTrip func(participantID string, rtt time.Duration)
	onTimeout   func(participantID, reason string)

	mu      sync.Mutex
	entries map[string]*entry
	stopped bool
}

type entry struct {
	probeTimer   *time.Timer
	timeoutTimer *time.Timer
	lastProbeAt  time.Time
	awaiting     bool
}

func NewMonitor(interval, timeout time.Duration, prober Prober,
	onRoundTrip func(string, time.Duration), onTimeout func(string, string)) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Monitor{
		interval:    interval,
		timeout:     timeout,
		prober:      prober,
		onRoundTrip: onRoundTrip,
		onTimeout:   onTimeout,
		entries:     map[string]*entry{},
	}
}

// Start begins (or restarts) monitoring a participant. Any pending timers
// for the same participant are cancelled first.
func (m *Monitor) Start(participantID string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.cancelLocked(participantID)
	e := &entry{}
	m.entries[participantID] = e
	m.probeLocked(participantID, e)
	m.mu.Unlock()
}

// Stop cancels monitoring for a participant. No-op for unknown participants.
func (m *Monitor) Stop(participantID string) {
	m.mu.Lock()
	m.cancelLocked(participantID)
	m.mu.Unlock()
}

// StopAll cancels every pending timer. The monitor refuses new Start calls
// afterwards; it is meant for shutdown.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	m.stopped = true
	for id := range m.entries {
		m.cancelLocked(id)
	}
	m.mu.Unlock()
}

// Monitoring reports whether the participant currently has an active cycle.
func (m *Monitor) Monitoring(participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[participantID]
	return ok
}

// HandleResponse processes a probe response. sentAt must echo the probe's
// timestamp; stale or unsolicited responses are ignored.
func (m *Monitor) HandleResponse(participantID string, sentAt time.Time) {
	m.mu.Lock()
	e, ok := m.entries[participantID]
	if !ok || !e.awaiting || !sentAt.Equal(e.lastProbeAt) {
		m.mu.Unlock()
		return
	}
	rtt := time.Since(e.lastProbeAt)
	e.awaiting = false
	if e.timeoutTimer != nil {
		e.timeoutTimer.Stop()
		e.timeoutTimer = nil
	}
	e.probeTimer = time.AfterFunc(m.interval, func() {
		m.nextProbe(participantID)
	})
	m.mu.Unlock()

	metricProbeResponses.Add(1)
	if m.onRoundTrip != nil {
		m.onRoundTrip(participantID, rtt)
	}
}

func (m *Monitor) nextProbe(participantID string) {
	m.mu.Lock()
	e, ok := m.entries[participantID]
	if !ok || m.stopped {
		m.mu.Unlock()
		return
	}
	m.probeLocked(participantID, e)
	m.mu.Unlock()
}

func (m *Monitor) probeLocked(participantID string, e *entry) {
	now := time.Now()
	e.lastProbeAt = now
	e.awaiting = true
	e.probeTimer = nil
	e.timeoutTimer = time.AfterFunc(m.timeout, func() {
		m.timedOut(participantID, now)
	})
	metricProbesSent.Add(1)
	if err := m.prober.SendProbe(participantID, now); err != nil {
		log.Debug().Err(err).Str("participant_id", participantID).Msg("probe send failed")
	}
}

func (m *Monitor) timedOut(participantID string, probeAt time.Time) {
	m.mu.Lock()
	e, ok := m.entries[participantID]
	if !ok || !e.awaiting || !probeAt.Equal(e.lastProbeAt) {
		m.mu.Unlock()
		return
	}
	m.cancelLocked(participantID)
	m.mu.Unlock()

	metricProbeTimeouts.Add(1)
	log.Warn().Str("participant_id", participantID).Msg("heartbeat timeout")
	if m.onTimeout != nil {
		m.onTimeout(participantID, ReasonTimeout)
	}
}

func (m *Monitor) cancelLocked(participantID string) {
	e, ok := m.entries[participantID]
	if !ok {
		return
	}
	if e.probeTimer != nil {
		e.probeTimer.Stop()
	}
	if e.timeoutTimer != nil {
		e.timeoutTimer.Stop()
	}
	delete(m.entries, participantID)
}

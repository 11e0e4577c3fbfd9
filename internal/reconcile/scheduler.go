package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"card-parlor/internal/broadcast"
	"card-parlor/internal/config"
	"card-parlor/internal/liveroom"
)

// StaleCleaner removes connection records that have been non-live longer
// than maxAge. Implemented by the connection registry.
type StaleCleaner interface {
	CleanupStale(maxAge time.Duration) int
}

// TimerStopper cancels all outstanding heartbeat timers; called on
// scheduler shutdown so no orphaned timer acts on a torn-down registry.
type TimerStopper interface {
	StopAll()
}

// Scheduler runs the three periodic activities of the reconciliation
// subsystem: the sweep tick, the stale-connection cleanup tick and the
// monitoring/alerting tick.
type Scheduler struct {
	engine  *Engine
	rooms   *liveroom.Store
	cleaner StaleCleaner
	stats   *Stats
	gateway broadcast.Gateway

	mu        sync.Mutex
	cfg       config.SyncConfig
	running   bool
	ctx       context.Context
	done      chan struct{}
	wg        sync.WaitGroup
	heartbeat TimerStopper
}

func NewScheduler(cfg config.SyncConfig, engine *Engine, rooms *liveroom.Store, cleaner StaleCleaner, stats *Stats, gateway broadcast.Gateway) *Scheduler {
	if gateway == nil {
		gateway = broadcast.Nop{}
	}
	if stats == nil {
		stats = NewStats()
	}
	return &Scheduler{
		engine:  engine,
		rooms:   rooms,
		cleaner: cleaner,
		stats:   stats,
		gateway: gateway,
		cfg:     cfg,
	}
}

// SetHeartbeat wires the heartbeat monitor so Shutdown can cancel its
// timers together with the scheduler ticks.
func (s *Scheduler) SetHeartbeat(hb TimerStopper) {
	s.mu.Lock()
	s.heartbeat = hb
	s.mu.Unlock()
}

// Start launches the periodic ticks. Calling Start while running is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.startLocked(ctx)
}

func (s *Scheduler) startLocked(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.done = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run(ctx, s.done, s.cfg)
	log.Info().
		Dur("reconcile_interval", s.cfg.ReconciliationInterval()).
		Dur("cleanup_interval", s.cfg.CleanupInterval()).
		Dur("monitoring_interval", s.cfg.MonitoringInterval()).
		Msg("reconciliation scheduler started")
}

// Stop cancels the ticks and waits for the running tick goroutine to
// drain. Calling Stop while stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Msg("reconciliation scheduler stopped")
}

// Shutdown stops the ticks and cancels every outstanding heartbeat timer.
func (s *Scheduler) Shutdown() {
	s.Stop()
	s.mu.Lock()
	hb := s.heartbeat
	s.mu.Unlock()
	if hb != nil {
		hb.StopAll()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Config() config.SyncConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) Stats() *Stats {
	return s.stats
}

// UpdateConfig swaps in new intervals and thresholds. When the scheduler is
// running it restarts the ticks so the new intervals take effect
// immediately without leaking timers.
func (s *Scheduler) UpdateConfig(cfg config.SyncConfig) {
	s.mu.Lock()
	wasRunning := s.running
	ctx := s.ctx
	if wasRunning {
		s.running = false
		close(s.done)
	}
	s.cfg = cfg
	s.mu.Unlock()

	if wasRunning {
		s.wg.Wait()
		s.mu.Lock()
		if !s.running {
			s.startLocked(ctx)
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}, cfg config.SyncConfig) {
	defer s.wg.Done()
	reconcileTicker := time.NewTicker(cfg.ReconciliationInterval())
	cleanupTicker := time.NewTicker(cfg.CleanupInterval())
	monitorTicker := time.NewTicker(cfg.MonitoringInterval())
	defer reconcileTicker.Stop()
	defer cleanupTicker.Stop()
	defer monitorTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Context cancellation stops this goroutine without going
			// through Stop, so the flag must be cleared here. Guard on the
			// done channel identity: a restart may already own the flag.
			s.mu.Lock()
			if s.done == done {
				s.running = false
			}
			s.mu.Unlock()
			return
		case <-done:
			return
		case <-reconcileTicker.C:
			s.reconcileTick(ctx)
		case <-cleanupTicker.C:
			s.cleanupTick(cfg)
		case <-monitorTicker.C:
			s.monitoringTick(cfg)
		}
	}
}

func (s *Scheduler) reconcileTick(ctx context.Context) {
	active := s.rooms.ActiveRooms()
	metricActiveRoomsLast.Set(int64(len(active)))
	for _, roomID := range active {
		s.sweepRoom(ctx, roomID)
	}
}

func (s *Scheduler) sweepRoom(ctx context.Context, roomID string) {
	_, inconsistencies, err := s.engine.ReconcileRoom(ctx, roomID)
	metricSweepsTotal.Add(1)
	if err != nil {
		metricSweepFailures.Add(1)
		s.stats.RecordSweep(false, 0)
		if errors.Is(err, ErrRevisionConflict) {
			// A concurrent writer won; the next tick retries naturally.
			log.Debug().Str("room_id", roomID).Msg("sweep deferred on revision conflict")
		} else {
			log.Warn().Err(err).Str("room_id", roomID).Msg("sweep failed")
		}
		return
	}
	s.stats.RecordSweep(true, len(inconsistencies))
	if len(inconsistencies) > 0 {
		metricInconsistencies.Add(int64(len(inconsistencies)))
		if room, ok := s.rooms.Get(roomID); ok {
			s.gateway.Notify(roomID, broadcast.EventInconsistencyAlert, broadcast.WithRoster(broadcast.Payload{
				RoomID:          roomID,
				Inconsistencies: len(inconsistencies),
			}, room))
		}
	}
}

// ForceReconcile runs one synchronous sweep for a room, outside the
// periodic schedule. Used by the operator surface.
func (s *Scheduler) ForceReconcile(ctx context.Context, roomID string) (uint64, []Inconsistency, error) {
	version, inconsistencies, err := s.engine.ReconcileRoom(ctx, roomID)
	metricSweepsTotal.Add(1)
	if err != nil {
		metricSweepFailures.Add(1)
		s.stats.RecordSweep(false, 0)
		return 0, nil, err
	}
	s.stats.RecordSweep(true, len(inconsistencies))
	return version, inconsistencies, nil
}

func (s *Scheduler) cleanupTick(cfg config.SyncConfig) {
	metricStaleCleanedTicks.Add(1)
	if s.cleaner == nil {
		return
	}
	removed := s.cleaner.CleanupStale(cfg.StaleConnectionAge())
	s.stats.RecordCleanup(removed)
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("stale connection records cleaned")
	}
}

func (s *Scheduler) monitoringTick(cfg config.SyncConfig) {
	snap := s.stats.Snapshot()
	alerts := CheckAlertConditions(snap, Thresholds{
		MaxFailureRate:       cfg.MaxFailureRate,
		MaxInconsistencyRate: cfg.MaxInconsistencyRate,
		MaxStaleConnections:  cfg.MaxStaleConnections,
	})
	for _, a := range alerts {
		metricAlertsRaised.Add(1)
		log.Warn().
			Str("alert", a.Type).
			Float64("value", a.Value).
			Float64("threshold", a.Threshold).
			Msg(a.Message)
	}
}

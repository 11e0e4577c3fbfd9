package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"card-parlor/internal/broadcast"
	"card-parlor/internal/liveroom"
	"card-parlor/internal/store"
)

// Connection quality tiers derived from measured round-trip latency.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

// ConnectionRecord tracks one participant's transport liveness. Owned
// exclusively by the Registry; callers get copies.
type ConnectionRecord struct {
	ParticipantID  string    `json:"participant_id"`
	DisplayName    string    `json:"display_name"`
	SessionID      string    `json:"session_id"`
	IsLive         bool      `json:"is_live"`
	ConnectedAt    time.Time `json:"connected_at"`
	DisconnectedAt time.Time `json:"disconnected_at,omitempty"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	ReconnectCount uint      `json:"reconnect_count"`
	LatencyMS      int64     `json:"latency_ms"`
	QualityTier    string    `json:"quality_tier,omitempty"`
}

// DurableIndex is the slice of the durable store the registry needs for
// reconnection state restoration.
type DurableIndex interface {
	FindRoomsByParticipant(ctx context.Context, participantID string) ([]string, error)
	GetParticipant(ctx context.Context, roomID, participantID string) (*store.Participant, error)
}

// MonitorControl starts and stops heartbeat monitoring for a participant.
type MonitorControl interface {
	Start(participantID string)
	Stop(participantID string)
}

// Registry maps participant identity to the active transport session and is
// the single source of truth for "is this participant currently reachable".
type Registry struct {
	rooms   *liveroom.Store
	durable DurableIndex
	gateway broadcast.Gateway

	mu      sync.Mutex
	records map[string]*ConnectionRecord
	monitor MonitorControl
}

func New(rooms *liveroom.Store, durable DurableIndex, gateway broadcast.Gateway) *Registry {
	if gateway == nil {
		gateway = broadcast.Nop{}
	}
	return &Registry{
		rooms:   rooms,
		durable: durable,
		gateway: gateway,
		records: map[string]*ConnectionRecord{},
	}
}

// SetGateway wires the broadcast gateway after construction. The transport
// needs the registry to exist first, so the wiring is two-step.
func (r *Registry) SetGateway(g broadcast.Gateway) {
	if g == nil {
		g = broadcast.Nop{}
	}
	r.mu.Lock()
	r.gateway = g
	r.mu.Unlock()
}

// SetMonitor wires the heartbeat monitor after construction; the monitor
// itself needs registry callbacks, so the two are connected in two steps.
func (r *Registry) SetMonitor(m MonitorControl) {
	r.mu.Lock()
	r.monitor = m
	r.mu.Unlock()
}

// RegisterResult reports what Register did, including whether durable state
// restoration ran for the reconnecting participant.
type RegisterResult struct {
	Reconnected        bool     `json:"reconnected"`
	Restored           bool     `json:"restored"`
	RestorationSkipped bool     `json:"restoration_skipped"`
	RestoredRooms      []string `json:"restored_rooms,omitempty"`
}

// Register creates or refreshes the connection record for a participant and
// runs the reconnection restoration protocol before any broadcast goes out.
func (r *Registry) Register(ctx context.Context, participantID, displayName, sessionID string) RegisterResult {
	now := time.Now()

	r.mu.Lock()
	rec, known := r.records[participantID]
	if !known {
		rec = &ConnectionRecord{
			ParticipantID: participantID,
			ConnectedAt:   now,
		}
		r.records[participantID] = rec
	}
	if known && !rec.IsLive {
		rec.ReconnectCount++
	}
	rec.DisplayName = displayName
	rec.SessionID = sessionID
	rec.IsLive = true
	rec.LastSeenAt = now
	if !known {
		rec.ConnectedAt = now
	}
	monitor := r.monitor
	r.mu.Unlock()

	result := RegisterResult{Reconnected: known}

	// Durable truth is copied into the live view before the reconnected
	// broadcast and the join acknowledgement, so peers never observe the
	// decayed in-memory state.
	restored, skipped, roomIDs := r.restoreFromDurable(ctx, participantID, displayName)
	result.Restored = restored
	result.RestorationSkipped = skipped
	result.RestoredRooms = roomIDs

	if skipped {
		// Availability over strict consistency: the participant stays
		// connected and the next reconciliation sweep corrects any drift.
		for _, room := range r.rooms.RoomsWithParticipant(participantID) {
			room.SetLive(participantID, true)
			roomIDs = append(roomIDs, room.ID())
		}
	}

	if monitor != nil {
		monitor.Start(participantID)
	}
	metricConnectionsRegistered.Add(1)

	event := broadcast.EventConnected
	if known {
		event = broadcast.EventReconnected
	}
	r.notifyRooms(participantID, event, roomIDs)
	return result
}

// MarkDisconnected flips the participant to non-live, stops heartbeat
// monitoring and broadcasts the disconnect. Idempotent: a second call for an
// already-disconnected participant changes nothing.
func (r *Registry) MarkDisconnected(participantID, reason string) {
	now := time.Now()

	r.mu.Lock()
	rec, ok := r.records[participantID]
	if !ok || !rec.IsLive {
		r.mu.Unlock()
		return
	}
	rec.IsLive = false
	rec.DisconnectedAt = now
	monitor := r.monitor
	r.mu.Unlock()

	if monitor != nil {
		monitor.Stop(participantID)
	}
	metricDisconnects.Add(1)
	log.Info().Str("participant_id", participantID).Str("reason", reason).Msg("participant disconnected")

	var roomIDs []string
	for _, room := range r.rooms.RoomsWithParticipant(participantID) {
		room.SetLive(participantID, false)
		roomIDs = append(roomIDs, room.ID())
	}
	r.notifyRooms(participantID, broadcast.EventDisconnected, roomIDs)
}

// RecordHeartbeat updates freshness and latency from one probe round trip.
// RecordRoundTrip adapts a measured probe round-trip into a heartbeat
// record. Shaped for the heartbeat monitor callback.
func (r *Registry) RecordRoundTrip(participantID string, rtt time.Duration) {
	r.RecordHeartbeat(participantID, rtt.Milliseconds())
}

func (r *Registry) RecordHeartbeat(participantID string, roundTripMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[participantID]
	if !ok {
		return
	}
	rec.LastSeenAt = time.Now()
	rec.LatencyMS = roundTripMS
	rec.QualityTier = qualityTier(roundTripMS)
}

func qualityTier(latencyMS int64) string {
	switch {
	case latencyMS < 100:
		return QualityExcellent
	case latencyMS < 300:
		return QualityGood
	case latencyMS < 1000:
		return QualityFair
	default:
		return QualityPoor
	}
}

func (r *Registry) IsLive(participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[participantID]
	return ok && rec.IsLive
}

// SessionID returns the transport session currently bound to a participant.
func (r *Registry) SessionID(participantID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[participantID]
	if !ok || !rec.IsLive {
		return "", false
	}
	return rec.SessionID, true
}

// ConnectedParticipants lists the live participants of a room.
func (r *Registry) ConnectedParticipants(roomID string) []liveroom.ParticipantView {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return nil
	}
	return room.LiveParticipants()
}

// Record returns a copy of the connection record for a participant.
func (r *Registry) Record(participantID string) (ConnectionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[participantID]
	if !ok {
		return ConnectionRecord{}, false
	}
	return *rec, true
}

// CleanupStale drops records that have been non-live longer than maxAge and
// returns how many were removed.
func (r *Registry) CleanupStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	r.mu.Lock()
	for id, rec := range r.records {
		if rec.IsLive {
			continue
		}
		if !rec.DisconnectedAt.IsZero() && rec.DisconnectedAt.Before(cutoff) {
			delete(r.records, id)
			removed++
		}
	}
	r.mu.Unlock()
	if removed > 0 {
		metricStaleCleaned.Add(int64(removed))
	}
	return removed
}

func (r *Registry) notifyRooms(participantID, event string, roomIDs []string) {
	r.mu.Lock()
	gateway := r.gateway
	r.mu.Unlock()

	seen := map[string]bool{}
	for _, roomID := range roomIDs {
		if seen[roomID] {
			continue
		}
		seen[roomID] = true
		room, ok := r.rooms.Get(roomID)
		if !ok {
			continue
		}
		rec, _ := r.Record(participantID)
		payload := broadcast.WithRoster(broadcast.Payload{
			RoomID:            roomID,
			ParticipantID:     participantID,
			IsLive:            rec.IsLive,
			ConnectionQuality: rec.QualityTier,
			LatencyMS:         rec.LatencyMS,
		}, room)
		gateway.Notify(roomID, event, payload)
	}
}

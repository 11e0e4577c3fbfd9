package broadcast

import "card-parlor/internal/liveroom"

// Event kinds fanned out to room participants.
const (
	EventConnected          = "connected"
	EventDisconnected       = "disconnected"
	EventReconnected        = "reconnected"
	EventRosterChanged      = "roster_changed"
	EventReconciled         = "reconciled"
	EventInconsistencyAlert = "inconsistency-alert"
)

// Payload always carries the current live roster and count so consumers
// never need a follow-up fetch.
type Payload struct {
	RoomID            string                     `json:"room_id"`
	ParticipantID     string                     `json:"participant_id,omitempty"`
	IsLive            bool                       `json:"is_live"`
	ConnectionQuality string                     `json:"connection_quality,omitempty"`
	LatencyMS         int64                      `json:"latency_ms,omitempty"`
	Version           uint64                     `json:"version,omitempty"`
	Inconsistencies   int                        `json:"inconsistencies,omitempty"`
	AlertType         string                     `json:"alert_type,omitempty"`
	LiveParticipants  []liveroom.ParticipantView `json:"live_participants"`
	LiveCount         int                        `json:"live_count"`
}

// Gateway fans an event out to every live transport session in a room.
// Delivery is best-effort, at most once per live session.
type Gateway interface {
	Notify(roomID, event string, payload Payload)
}

// WithRoster fills the roster fields from the room's current live view.
func WithRoster(p Payload, room *liveroom.Room) Payload {
	if room == nil {
		if p.LiveParticipants == nil {
			p.LiveParticipants = []liveroom.ParticipantView{}
		}
		return p
	}
	roster := room.LiveParticipants()
	p.LiveParticipants = roster
	p.LiveCount = len(roster)
	return p
}

// Nop discards every event. Useful as a default before the transport is up.
type Nop struct{}

func (Nop) Notify(string, string, Payload) {}

package ws

import "card-parlor/internal/broadcast"

type JoinMessage struct {
	Type          string `json:"type"`
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name,omitempty"`
}

// JoinResult acks a join. Restored reports whether durable room state was
// replayed into the live view; RestorationSkipped means the durable store
// could not be consulted but the connection was accepted anyway.
type JoinResult struct {
	Type               string   `json:"type"`
	Ok                 bool     `json:"ok"`
	Error              string   `json:"error,omitempty"`
	RoomID             string   `json:"room_id,omitempty"`
	SessionID          string   `json:"session_id,omitempty"`
	Reconnected        bool     `json:"reconnected"`
	Restored           bool     `json:"restored"`
	RestorationSkipped bool     `json:"restoration_skipped"`
	RestoredRooms      []string `json:"restored_rooms,omitempty"`
}

// ReadyMessage toggles the sender's readiness flag in their current room.
type ReadyMessage struct {
	Type    string `json:"type"`
	IsReady bool   `json:"is_ready"`
}

// RoleMessage assigns the sender's seat or role in their current room.
type RoleMessage struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// LeaveMessage withdraws the sender's durable membership in their current
// room while keeping the connection open.
type LeaveMessage struct {
	Type string `json:"type"`
}

// PingMessage is a liveness probe. The client must echo TimestampMS back
// unchanged in its pong.
type PingMessage struct {
	Type        string `json:"type"`
	TimestampMS int64  `json:"ts_ms"`
}

type PongMessage struct {
	Type        string `json:"type"`
	TimestampMS int64  `json:"ts_ms"`
}

// EventMessage is the envelope for room events fanned out to live sessions.
type EventMessage struct {
	Type        string            `json:"type"`
	Event       string            `json:"event"`
	RoomID      string            `json:"room_id"`
	TimestampMS int64             `json:"timestamp_ms"`
	Payload     broadcast.Payload `json:"payload"`
}

const (
	joinRejectInvalid = "invalid_join"
	joinRejectStore   = "store_unavailable"
)

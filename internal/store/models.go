package store

import "time"

// Participant is one row of durable room membership.
type Participant struct {
	ParticipantID  string    `json:"participant_id"`
	DisplayName    string    `json:"display_name"`
	IsReady        bool      `json:"is_ready"`
	RoleAssignment string    `json:"role_assignment,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
}

// RoomState is the durable copy of a room, the system of record that
// reconciliation corrects the live view against.
type RoomState struct {
	RoomID       string                 `json:"room_id"`
	Status       string                 `json:"status"`
	OwnerID      string                 `json:"owner_id"`
	Participants map[string]Participant `json:"participants"`
}

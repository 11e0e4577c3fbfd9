package liveroom

import (
	"sync"
	"time"
)

const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusClosed  = "closed"
)

// ParticipantView is one participant's slice of a room's live state.
type ParticipantView struct {
	ParticipantID  string `json:"participant_id"`
	DisplayName    string `json:"display_name"`
	IsLive         bool   `json:"is_live"`
	IsReady        bool   `json:"is_ready"`
	RoleAssignment string `json:"role_assignment,omitempty"`
}

// Snapshot is a point-in-time copy of a room's live state, safe to read
// without holding the room lock.
type Snapshot struct {
	RoomID       string
	Version      uint64
	Status       string
	OwnerID      string
	Participants map[string]ParticipantView
}

// Room is the guarded handle for one room's live state. Every mutation goes
// through a method that takes the room lock, so connection events and
// reconciliation corrections never interleave their writes.
type Room struct {
	mu           sync.Mutex
	id           string
	version      uint64
	status       string
	ownerID      string
	participants map[string]ParticipantView
	updatedAt    time.Time
}

func newRoom(id string) *Room {
	return &Room{
		id:           id,
		status:       StatusWaiting,
		participants: map[string]ParticipantView{},
		updatedAt:    time.Now(),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make(map[string]ParticipantView, len(r.participants))
	for id, v := range r.participants {
		views[id] = v
	}
	return Snapshot{
		RoomID:       r.id,
		Version:      r.version,
		Status:       r.status,
		OwnerID:      r.ownerID,
		Participants: views,
	}
}

func (r *Room) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// BumpVersion advances the room version by exactly one and returns the new
// value. Callers invoke it only after a successful conditional write of the
// reconciled state to the durable store.
func (r *Room) BumpVersion() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	r.updatedAt = time.Now()
	return r.version
}

func (r *Room) SetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.updatedAt = time.Now()
}

func (r *Room) SetOwner(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownerID = participantID
	r.updatedAt = time.Now()
}

// UpsertParticipant merges a participant into the room, preserving readiness
// and role for a participant that is already present.
func (r *Room) UpsertParticipant(participantID, displayName string, live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.participants[participantID]
	if !ok {
		view = ParticipantView{ParticipantID: participantID}
	}
	view.DisplayName = displayName
	view.IsLive = live
	r.participants[participantID] = view
	if r.ownerID == "" {
		r.ownerID = participantID
	}
	r.updatedAt = time.Now()
}

// SetLive flips the liveness flag for a known participant. Unknown
// participants are a no-op.
func (r *Room) SetLive(participantID string, live bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.participants[participantID]
	if !ok {
		return false
	}
	view.IsLive = live
	r.participants[participantID] = view
	r.updatedAt = time.Now()
	return true
}

func (r *Room) SetReady(participantID string, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.participants[participantID]
	if !ok {
		return false
	}
	view.IsReady = ready
	r.participants[participantID] = view
	r.updatedAt = time.Now()
	return true
}

func (r *Room) AssignRole(participantID, role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.participants[participantID]
	if !ok {
		return false
	}
	view.RoleAssignment = role
	r.participants[participantID] = view
	r.updatedAt = time.Now()
	return true
}

// Restore copies durable-store truth for one participant into the live view
// and marks them live. Used by the reconnection restoration step.
func (r *Room) Restore(participantID, displayName string, ready bool, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.participants[participantID]
	if !ok {
		view = ParticipantView{ParticipantID: participantID}
	}
	if displayName != "" {
		view.DisplayName = displayName
	}
	view.IsReady = ready
	view.RoleAssignment = role
	view.IsLive = true
	r.participants[participantID] = view
	r.updatedAt = time.Now()
}

func (r *Room) RemoveParticipant(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, participantID)
	r.updatedAt = time.Now()
}

// Correction overwrites the corrected fields in one locked section so a
// reconciliation sweep never interleaves with a connection event mid-write.
type Correction struct {
	OwnerID  string
	Status   string
	Ready    map[string]bool
	Roles    map[string]string
	Removals []string
}

func (r *Room) ApplyCorrection(c Correction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.OwnerID != "" {
		r.ownerID = c.OwnerID
	}
	if c.Status != "" {
		r.status = c.Status
	}
	for id, ready := range c.Ready {
		if view, ok := r.participants[id]; ok {
			view.IsReady = ready
			r.participants[id] = view
		}
	}
	for id, role := range c.Roles {
		if view, ok := r.participants[id]; ok {
			view.RoleAssignment = role
			r.participants[id] = view
		}
	}
	for _, id := range c.Removals {
		// Removals were decided on an earlier snapshot; a participant who
		// went live since then stays.
		if view, ok := r.participants[id]; ok && view.IsLive {
			continue
		}
		delete(r.participants, id)
	}
	r.updatedAt = time.Now()
}

// LiveParticipants returns the roster of currently-live participants,
// suitable for broadcast payloads.
func (r *Room) LiveParticipants() []ParticipantView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ParticipantView, 0, len(r.participants))
	for _, v := range r.participants {
		if v.IsLive {
			out = append(out, v)
		}
	}
	return out
}

func (r *Room) HasLiveParticipant() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.participants {
		if v.IsLive {
			return true
		}
	}
	return false
}

func (r *Room) Participant(participantID string) (ParticipantView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.participants[participantID]
	return v, ok
}

package liveroom

import "sync"

// Store holds the authoritative in-process copy of every room this server
// is currently serving. The store map itself is guarded; all room state
// mutation happens through the per-room handles.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: map[string]*Room{}}
}

// Ensure returns the room handle, creating an empty one if this process has
// not seen the room yet.
func (s *Store) Ensure(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room
	}
	room := newRoom(roomID)
	s.rooms[roomID] = room
	return room
}

func (s *Store) Get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *Store) Remove(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// ActiveRooms lists rooms with at least one live connection. These are the
// rooms the reconciliation sweep visits.
func (s *Store) ActiveRooms() []string {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	out := []string{}
	for _, room := range rooms {
		if room.HasLiveParticipant() {
			out = append(out, room.ID())
		}
	}
	return out
}

// RoomsWithParticipant returns every room handle currently holding a view
// for the participant, live or not.
func (s *Store) RoomsWithParticipant(participantID string) []*Room {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	out := []*Room{}
	for _, room := range rooms {
		if _, ok := room.Participant(participantID); ok {
			out = append(out, room)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

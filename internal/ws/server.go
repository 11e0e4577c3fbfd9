package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"card-parlor/internal/broadcast"
	"card-parlor/internal/liveroom"
	"card-parlor/internal/registry"
	"card-parlor/internal/store"
)

var errNoSession = errors.New("no live session for participant")

// DurableWriter is the slice of the durable store live traffic writes
// through. Every participant mutation advances the room revision so
// reconciliation sweeps cannot overwrite it.
type DurableWriter interface {
	EnsureRoom(ctx context.Context, roomID, ownerID string) error
	UpsertParticipant(ctx context.Context, roomID, participantID, displayName string) error
	SetParticipantReady(ctx context.Context, roomID, participantID string, ready bool) error
	SetParticipantRole(ctx context.Context, roomID, participantID, role string) error
	RemoveParticipant(ctx context.Context, roomID, participantID string) error
}

// ProbeResponder consumes echoed probe timestamps. Satisfied by the
// heartbeat monitor.
type ProbeResponder interface {
	HandleResponse(participantID string, sentAt time.Time)
}

type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	sessionID     string
	participantID string
	roomID        string
	joined        bool
}

// Server owns the websocket sessions. It is both the broadcast gateway
// (fan-out of room events) and the heartbeat prober (ping frames on the
// wire); one participant holds at most one live session.
type Server struct {
	durable  DurableWriter
	rooms    *liveroom.Store
	registry *registry.Registry
	upgrader websocket.Upgrader

	mu            sync.Mutex
	byParticipant map[string]*Client
	probes        map[string]time.Time
	responder     ProbeResponder
}

func NewServer(durable DurableWriter, rooms *liveroom.Store, reg *registry.Registry) *Server {
	return &Server{
		durable:       durable,
		rooms:         rooms,
		registry:      reg,
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		byParticipant: map[string]*Client{},
		probes:        map[string]time.Time{},
	}
}

// SetResponder wires the heartbeat monitor after construction; pongs
// arriving before that are dropped.
func (s *Server) SetResponder(r ProbeResponder) {
	s.mu.Lock()
	s.responder = r
	s.mu.Unlock()
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 16), sessionID: uuid.NewString()}
	metricSessionsOpened.Add(1)

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "join":
			if c.joined {
				continue
			}
			var join JoinMessage
			if err := json.Unmarshal(msg, &join); err != nil {
				continue
			}
			s.handleJoin(c, join)
		case "ready":
			if !c.joined {
				continue
			}
			var ready ReadyMessage
			if err := json.Unmarshal(msg, &ready); err != nil {
				continue
			}
			s.handleReady(c, ready)
		case "role":
			if !c.joined {
				continue
			}
			var role RoleMessage
			if err := json.Unmarshal(msg, &role); err != nil {
				continue
			}
			s.handleRole(c, role)
		case "leave":
			if !c.joined {
				continue
			}
			s.handleLeave(c)
		case "pong":
			if !c.joined {
				continue
			}
			var pong PongMessage
			if err := json.Unmarshal(msg, &pong); err != nil {
				continue
			}
			s.handlePong(c, pong)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) handleJoin(c *Client, join JoinMessage) {
	if join.ParticipantID == "" {
		s.sendResult(c, JoinResult{Type: "join_result", Error: joinRejectInvalid})
		metricJoinsRejected.Add(1)
		return
	}
	if join.RoomID == "" {
		// Joining without a room creates one; the ack carries the new id.
		join.RoomID = store.NewID()
	}
	ctx := context.Background()

	if err := s.durable.EnsureRoom(ctx, join.RoomID, join.ParticipantID); err != nil {
		log.Warn().Err(err).Str("room_id", join.RoomID).Msg("join rejected: durable room write failed")
		s.sendResult(c, JoinResult{Type: "join_result", Error: joinRejectStore})
		metricJoinsRejected.Add(1)
		return
	}
	if err := s.durable.UpsertParticipant(ctx, join.RoomID, join.ParticipantID, join.DisplayName); err != nil {
		log.Warn().Err(err).Str("room_id", join.RoomID).Msg("join rejected: durable participant write failed")
		s.sendResult(c, JoinResult{Type: "join_result", Error: joinRejectStore})
		metricJoinsRejected.Add(1)
		return
	}

	room := s.rooms.Ensure(join.RoomID)
	room.UpsertParticipant(join.ParticipantID, join.DisplayName, true)

	s.mu.Lock()
	if old := s.byParticipant[join.ParticipantID]; old != nil && old != c {
		// Same participant on a new socket supersedes the old session
		// without a disconnect broadcast.
		safeClose(old.send)
		_ = old.conn.Close()
		metricSessionsEvicted.Add(1)
	}
	c.participantID = join.ParticipantID
	c.roomID = join.RoomID
	c.joined = true
	s.byParticipant[join.ParticipantID] = c
	s.mu.Unlock()

	result := s.registry.Register(ctx, join.ParticipantID, join.DisplayName, c.sessionID)

	log.Info().
		Str("room_id", join.RoomID).
		Str("participant_id", join.ParticipantID).
		Str("session_id", c.sessionID).
		Bool("reconnected", result.Reconnected).
		Bool("restored", result.Restored).
		Msg("participant joined")

	s.sendResult(c, JoinResult{
		Type:               "join_result",
		Ok:                 true,
		RoomID:             join.RoomID,
		SessionID:          c.sessionID,
		Reconnected:        result.Reconnected,
		Restored:           result.Restored,
		RestorationSkipped: result.RestorationSkipped,
		RestoredRooms:      result.RestoredRooms,
	})
}

func (s *Server) handleReady(c *Client, ready ReadyMessage) {
	if err := s.durable.SetParticipantReady(context.Background(), c.roomID, c.participantID, ready.IsReady); err != nil {
		log.Warn().Err(err).Str("room_id", c.roomID).Str("participant_id", c.participantID).
			Msg("durable readiness write failed")
		return
	}
	room, ok := s.rooms.Get(c.roomID)
	if !ok {
		return
	}
	room.SetReady(c.participantID, ready.IsReady)
	s.notifyRoster(room, c.participantID)
}

func (s *Server) handleRole(c *Client, role RoleMessage) {
	if err := s.durable.SetParticipantRole(context.Background(), c.roomID, c.participantID, role.Role); err != nil {
		log.Warn().Err(err).Str("room_id", c.roomID).Str("participant_id", c.participantID).
			Msg("durable role write failed")
		return
	}
	room, ok := s.rooms.Get(c.roomID)
	if !ok {
		return
	}
	room.AssignRole(c.participantID, role.Role)
	s.notifyRoster(room, c.participantID)
}

func (s *Server) handleLeave(c *Client) {
	if err := s.durable.RemoveParticipant(context.Background(), c.roomID, c.participantID); err != nil {
		log.Warn().Err(err).Str("room_id", c.roomID).Str("participant_id", c.participantID).
			Msg("durable leave write failed")
		return
	}
	room, ok := s.rooms.Get(c.roomID)
	if !ok {
		return
	}
	room.RemoveParticipant(c.participantID)
	log.Info().Str("room_id", c.roomID).Str("participant_id", c.participantID).Msg("participant left room")
	s.notifyRoster(room, c.participantID)
}

// notifyRoster fans the room's updated live roster out after a membership
// or seat change. Durable truth was written first, so a crash here loses
// only the broadcast.
func (s *Server) notifyRoster(room *liveroom.Room, participantID string) {
	payload := broadcast.WithRoster(broadcast.Payload{RoomID: room.ID(), ParticipantID: participantID}, room)
	s.Notify(room.ID(), broadcast.EventRosterChanged, payload)
	metricRosterUpdates.Add(1)
}

func (s *Server) handlePong(c *Client, pong PongMessage) {
	s.mu.Lock()
	sentAt, ok := s.probes[c.participantID]
	responder := s.responder
	s.mu.Unlock()
	if !ok || responder == nil || sentAt.UnixMilli() != pong.TimestampMS {
		return
	}
	responder.HandleResponse(c.participantID, sentAt)
}

// SendProbe puts a ping frame on the participant's session. Implements the
// heartbeat prober; sentAt is held so the echoed millisecond timestamp can
// be mapped back to the exact probe time.
func (s *Server) SendProbe(participantID string, sentAt time.Time) error {
	msg, _ := json.Marshal(PingMessage{Type: "ping", TimestampMS: sentAt.UnixMilli()})
	s.mu.Lock()
	c := s.byParticipant[participantID]
	if c != nil {
		s.probes[participantID] = sentAt
	}
	s.mu.Unlock()
	if c == nil {
		return errNoSession
	}
	safeSend(c.send, msg)
	return nil
}

// Notify fans a room event out to every live session in the room.
// Implements the broadcast gateway; delivery is best-effort.
func (s *Server) Notify(roomID, event string, payload broadcast.Payload) {
	roster := payload.LiveParticipants
	if roster == nil {
		if room, ok := s.rooms.Get(roomID); ok {
			roster = room.LiveParticipants()
		}
	}
	msg, err := json.Marshal(EventMessage{
		Type:        "event",
		Event:       event,
		RoomID:      roomID,
		TimestampMS: time.Now().UnixMilli(),
		Payload:     payload,
	})
	if err != nil {
		return
	}

	s.mu.Lock()
	targets := make([]*Client, 0, len(roster))
	for _, p := range roster {
		if c := s.byParticipant[p.ParticipantID]; c != nil {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	for _, c := range targets {
		safeSend(c.send, msg)
		metricEventsSent.Add(1)
	}
}

func (s *Server) unregister(c *Client) {
	disconnected := false
	s.mu.Lock()
	if c.joined && s.byParticipant[c.participantID] == c {
		delete(s.byParticipant, c.participantID)
		delete(s.probes, c.participantID)
		disconnected = true
	}
	s.mu.Unlock()

	if disconnected {
		s.registry.MarkDisconnected(c.participantID, "connection_closed")
	}
	safeClose(c.send)
	metricSessionsClosed.Add(1)
}

// Shutdown force-closes every open session.
func (s *Server) Shutdown() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.byParticipant))
	for _, c := range s.byParticipant {
		clients = append(clients, c)
	}
	s.byParticipant = map[string]*Client{}
	s.probes = map[string]time.Time{}
	s.mu.Unlock()

	for _, c := range clients {
		safeClose(c.send)
		_ = c.conn.Close()
	}
}

func (s *Server) sendResult(c *Client, result JoinResult) {
	msg, _ := json.Marshal(result)
	safeSend(c.send, msg)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}

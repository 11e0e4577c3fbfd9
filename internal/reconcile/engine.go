package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"card-parlor/internal/broadcast"
	"card-parlor/internal/liveroom"
	"card-parlor/internal/store"
)

// Inconsistency kinds reported by a sweep.
const (
	KindReadyMismatch    = "ready_mismatch"
	KindRoleMismatch     = "role_mismatch"
	KindMissingInLive    = "participant_missing_in_live"
	KindMissingInDurable = "participant_missing_in_durable"
	KindOwnerMismatch    = "owner_mismatch"
	KindStatusMismatch   = "status_mismatch"
)

// ErrRevisionConflict marks a sweep that lost the conditional write to a
// concurrent writer. The sweep is retried on the next scheduled tick, never
// synchronously.
var ErrRevisionConflict = errors.New("durable revision changed during sweep")

// Inconsistency describes one detected divergence between the live and
// durable copies of a room.
type Inconsistency struct {
	Kind          string `json:"kind"`
	ParticipantID string `json:"participant_id,omitempty"`
	LiveValue     any    `json:"live_value"`
	DurableValue  any    `json:"durable_value"`
}

// DurableStore is the slice of the durable state store the engine consumes.
type DurableStore interface {
	ReadRoom(ctx context.Context, roomID string) (*store.RoomState, int64, error)
	WriteRoomIfRevisionMatches(ctx context.Context, roomID string, state store.RoomState, expectedRevision int64) (bool, error)
}

// Engine compares a room's live state against the durable copy, corrects
// the live store toward durable truth, and guards the per-room version bump
// with the store's conditional write.
type Engine struct {
	rooms       *liveroom.Store
	durable     DurableStore
	gateway     broadcast.Gateway
	orphanGrace int

	mu           sync.Mutex
	orphanSweeps map[string]map[string]int
}

func NewEngine(rooms *liveroom.Store, durable DurableStore, gateway broadcast.Gateway, orphanGraceSweeps int) *Engine {
	if gateway == nil {
		gateway = broadcast.Nop{}
	}
	if orphanGraceSweeps <= 0 {
		orphanGraceSweeps = 3
	}
	return &Engine{
		rooms:        rooms,
		durable:      durable,
		gateway:      gateway,
		orphanGrace:  orphanGraceSweeps,
		orphanSweeps: map[string]map[string]int{},
	}
}

// DetectInconsistencies compares the two copies field by field. Pure; no
// side effects, usable on its own for diagnostics.
func DetectInconsistencies(live liveroom.Snapshot, durable store.RoomState) []Inconsistency {
	out := []Inconsistency{}
	if live.OwnerID != durable.OwnerID {
		out = append(out, Inconsistency{Kind: KindOwnerMismatch, LiveValue: live.OwnerID, DurableValue: durable.OwnerID})
	}
	if durable.Status != "" && live.Status != durable.Status {
		out = append(out, Inconsistency{Kind: KindStatusMismatch, LiveValue: live.Status, DurableValue: durable.Status})
	}
	for id, lv := range live.Participants {
		dv, ok := durable.Participants[id]
		if !ok {
			out = append(out, Inconsistency{Kind: KindMissingInDurable, ParticipantID: id, LiveValue: lv, DurableValue: nil})
			continue
		}
		if lv.IsReady != dv.IsReady {
			out = append(out, Inconsistency{Kind: KindReadyMismatch, ParticipantID: id, LiveValue: lv.IsReady, DurableValue: dv.IsReady})
		}
		if lv.RoleAssignment != dv.RoleAssignment {
			out = append(out, Inconsistency{Kind: KindRoleMismatch, ParticipantID: id, LiveValue: lv.RoleAssignment, DurableValue: dv.RoleAssignment})
		}
	}
	for id, dv := range durable.Participants {
		if _, ok := live.Participants[id]; !ok {
			out = append(out, Inconsistency{Kind: KindMissingInLive, ParticipantID: id, LiveValue: nil, DurableValue: dv})
		}
	}
	return out
}

// ReconcileRoom runs one sweep for a room. On success the room version is
// bumped exactly once; a conditional-write loss returns ErrRevisionConflict
// with no version bump and no live correction.
func (e *Engine) ReconcileRoom(ctx context.Context, roomID string) (uint64, []Inconsistency, error) {
	room, ok := e.rooms.Get(roomID)
	if !ok {
		// Room not active in this process; nothing to reconcile.
		return 0, nil, nil
	}

	durableState, revision, err := e.durable.ReadRoom(ctx, roomID)
	if err != nil {
		return 0, nil, fmt.Errorf("read durable room %s: %w", roomID, err)
	}

	live := room.Snapshot()
	inconsistencies := DetectInconsistencies(live, *durableState)
	correction := e.buildCorrection(live, *durableState)

	// The conditional write is the token that makes the version bump safe:
	// if the revision moved, a concurrent writer won and this sweep defers.
	ok, err = e.durable.WriteRoomIfRevisionMatches(ctx, roomID, *durableState, revision)
	if err != nil {
		return 0, nil, fmt.Errorf("persist reconciled room %s: %w", roomID, err)
	}
	if !ok {
		metricSweepConflicts.Add(1)
		return 0, nil, fmt.Errorf("room %s: %w", roomID, ErrRevisionConflict)
	}

	room.ApplyCorrection(correction)
	newVersion := room.BumpVersion()

	if len(inconsistencies) > 0 {
		log.Info().Str("room_id", roomID).Uint64("version", newVersion).
			Int("inconsistencies", len(inconsistencies)).Msg("room reconciled with drift")
	}
	e.gateway.Notify(roomID, broadcast.EventReconciled, broadcast.WithRoster(broadcast.Payload{
		RoomID:          roomID,
		Version:         newVersion,
		Inconsistencies: len(inconsistencies),
	}, room))
	return newVersion, inconsistencies, nil
}

// buildCorrection resolves divergences deterministically: durable wins for
// fields present in both stores. Participants only in the live copy get a
// grace period (they may be mid-join) and are removed once the grace runs
// out with no live connection; participants only in the durable copy are
// ghosts and are never re-added to the live copy.
func (e *Engine) buildCorrection(live liveroom.Snapshot, durable store.RoomState) liveroom.Correction {
	c := liveroom.Correction{Ready: map[string]bool{}, Roles: map[string]string{}}
	if live.OwnerID != durable.OwnerID && durable.OwnerID != "" {
		c.OwnerID = durable.OwnerID
	}
	if durable.Status != "" && live.Status != durable.Status {
		c.Status = durable.Status
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	orphans := e.orphanSweeps[live.RoomID]
	if orphans == nil {
		orphans = map[string]int{}
		e.orphanSweeps[live.RoomID] = orphans
	}

	for id, lv := range live.Participants {
		dv, ok := durable.Participants[id]
		if !ok {
			orphans[id]++
			if orphans[id] >= e.orphanGrace && !lv.IsLive {
				c.Removals = append(c.Removals, id)
				delete(orphans, id)
			}
			continue
		}
		delete(orphans, id)
		if lv.IsReady != dv.IsReady {
			c.Ready[id] = dv.IsReady
		}
		if lv.RoleAssignment != dv.RoleAssignment {
			c.Roles[id] = dv.RoleAssignment
		}
	}
	for id := range orphans {
		if _, stillLive := live.Participants[id]; !stillLive {
			delete(orphans, id)
		}
	}
	return c
}

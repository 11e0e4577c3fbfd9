package registry

import (
	"context"

	"github.com/rs/zerolog/log"
)

// restoreFromDurable copies the participant's durable fields (readiness,
// role) into every live room they belong to and marks them live there.
// Returns restored=false, skipped=true when the durable store could not be
// consulted; the caller then degrades to marking liveness only.
func (r *Registry) restoreFromDurable(ctx context.Context, participantID, displayName string) (restored, skipped bool, roomIDs []string) {
	if r.durable == nil {
		return false, false, nil
	}
	durableRooms, err := r.durable.FindRoomsByParticipant(ctx, participantID)
	if err != nil {
		log.Warn().Err(err).Str("participant_id", participantID).
			Msg("state restoration skipped: durable lookup failed")
		metricRestoreSkipped.Add(1)
		return false, true, nil
	}

	for _, roomID := range durableRooms {
		room, ok := r.rooms.Get(roomID)
		if !ok {
			// Room not active in this process; nothing to restore into.
			continue
		}
		p, err := r.durable.GetParticipant(ctx, roomID, participantID)
		if err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("participant_id", participantID).
				Msg("state restoration skipped for room")
			metricRestoreSkipped.Add(1)
			skipped = true
			continue
		}
		name := p.DisplayName
		if name == "" {
			name = displayName
		}
		room.Restore(participantID, name, p.IsReady, p.RoleAssignment)
		roomIDs = append(roomIDs, roomID)
		restored = true
	}
	if restored {
		metricRestoreCompleted.Add(1)
	}
	return restored, skipped, roomIDs
}

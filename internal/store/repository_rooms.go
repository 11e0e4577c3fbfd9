package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ReadRoom loads the durable room state together with its row revision. The
// revision is the token for the conditional write below.
func (s *Store) ReadRoom(ctx context.Context, roomID string) (*RoomState, int64, error) {
	row := s.Pool.QueryRow(ctx, `SELECT status, owner_id, revision FROM rooms WHERE id = $1`, roomID)
	state := RoomState{RoomID: roomID, Participants: map[string]Participant{}}
	var revision int64
	if err := row.Scan(&state.Status, &state.OwnerID, &revision); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT participant_id, display_name, is_ready, role_assignment, joined_at
		FROM room_participants WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ParticipantID, &p.DisplayName, &p.IsReady, &p.RoleAssignment, &p.JoinedAt); err != nil {
			return nil, 0, err
		}
		state.Participants[p.ParticipantID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return &state, revision, nil
}

// WriteRoomIfRevisionMatches replaces the durable room state only if the row
// revision still equals expectedRevision. Returns false when a concurrent
// writer advanced the revision first.
func (s *Store) WriteRoomIfRevisionMatches(ctx context.Context, roomID string, state RoomState, expectedRevision int64) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE rooms SET status = $2, owner_id = $3, revision = revision + 1, updated_at = now()
		WHERE id = $1 AND revision = $4`,
		roomID, state.Status, state.OwnerID, expectedRevision)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM room_participants WHERE room_id = $1`, roomID); err != nil {
		return false, err
	}
	for _, p := range state.Participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO room_participants (room_id, participant_id, display_name, is_ready, role_assignment)
			VALUES ($1,$2,$3,$4,$5)`,
			roomID, p.ParticipantID, p.DisplayName, p.IsReady, p.RoleAssignment); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// FindRoomsByParticipant lists rooms the participant durably belongs to,
// used when restoring state for a reconnecting participant.
func (s *Store) FindRoomsByParticipant(ctx context.Context, participantID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT room_id FROM room_participants WHERE participant_id = $1`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, err
		}
		out = append(out, roomID)
	}
	return out, rows.Err()
}

// EnsureRoom inserts the room row when it does not exist yet. The first
// joiner becomes the owner. An existing row is left untouched, so its
// revision does not move.
func (s *Store) EnsureRoom(ctx context.Context, roomID, ownerID string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO rooms (id, owner_id) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, roomID, ownerID)
	return err
}

// withRevisionBump runs a participant write inside a transaction that also
// advances the room's revision. Every live-traffic mutation goes through
// here so a concurrent conditional write observes the change instead of
// overwriting it.
func (s *Store) withRevisionBump(ctx context.Context, roomID string, write func(pgx.Tx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE rooms SET revision = revision + 1, updated_at = now() WHERE id = $1`, roomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := write(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertParticipant records or refreshes durable membership for live join
// traffic. Readiness and role are preserved on conflict so a reconnect does
// not reset them.
func (s *Store) UpsertParticipant(ctx context.Context, roomID, participantID, displayName string) error {
	return s.withRevisionBump(ctx, roomID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO room_participants (room_id, participant_id, display_name)
			VALUES ($1,$2,$3)
			ON CONFLICT (room_id, participant_id) DO UPDATE SET display_name = EXCLUDED.display_name`,
			roomID, participantID, displayName)
		return err
	})
}

func (s *Store) SetParticipantReady(ctx context.Context, roomID, participantID string, ready bool) error {
	return s.withRevisionBump(ctx, roomID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE room_participants SET is_ready = $3 WHERE room_id = $1 AND participant_id = $2`,
			roomID, participantID, ready)
		return err
	})
}

func (s *Store) SetParticipantRole(ctx context.Context, roomID, participantID, role string) error {
	return s.withRevisionBump(ctx, roomID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE room_participants SET role_assignment = $3 WHERE room_id = $1 AND participant_id = $2`,
			roomID, participantID, role)
		return err
	})
}

func (s *Store) RemoveParticipant(ctx context.Context, roomID, participantID string) error {
	return s.withRevisionBump(ctx, roomID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM room_participants WHERE room_id = $1 AND participant_id = $2`,
			roomID, participantID)
		return err
	})
}

// GetParticipant loads one durable membership row.
func (s *Store) GetParticipant(ctx context.Context, roomID, participantID string) (*Participant, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT participant_id, display_name, is_ready, role_assignment, joined_at
		FROM room_participants WHERE room_id = $1 AND participant_id = $2`,
		roomID, participantID)
	var p Participant
	if err := row.Scan(&p.ParticipantID, &p.DisplayName, &p.IsReady, &p.RoleAssignment, &p.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store wraps DB access to the durable room state.
type Store struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'waiting',
	owner_id   TEXT NOT NULL DEFAULT '',
	revision   BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS room_participants (
	room_id         TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	participant_id  TEXT NOT NULL,
	display_name    TEXT NOT NULL DEFAULT '',
	is_ready        BOOLEAN NOT NULL DEFAULT FALSE,
	role_assignment TEXT NOT NULL DEFAULT '',
	joined_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_id, participant_id)
);
CREATE INDEX IF NOT EXISTS idx_room_participants_participant
	ON room_participants (participant_id);
`

// EnsureSchema creates the room tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaDDL)
	return err
}

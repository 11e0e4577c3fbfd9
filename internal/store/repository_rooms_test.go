package store_test

import (
	"context"
	"testing"

	"card-parlor/internal/store"
	"card-parlor/internal/testutil"
)

func TestWriteRoomIfRevisionMatches(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	ctx := context.Background()
	roomID := store.NewID()
	if err := st.EnsureRoom(ctx, roomID, "p1"); err != nil {
		t.Fatalf("ensure room: %v", err)
	}
	if err := st.UpsertParticipant(ctx, roomID, "p1", "Ada"); err != nil {
		t.Fatalf("upsert participant: %v", err)
	}

	state, rev, err := st.ReadRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("read room: %v", err)
	}
	if rev != 1 {
		t.Fatalf("revision after fresh room plus one upsert = %d, want 1", rev)
	}

	state.Status = "active"
	p := state.Participants["p1"]
	p.IsReady = true
	state.Participants["p1"] = p

	ok, err := st.WriteRoomIfRevisionMatches(ctx, roomID, *state, rev)
	if err != nil {
		t.Fatalf("conditional write: %v", err)
	}
	if !ok {
		t.Fatal("conditional write at current revision should succeed")
	}

	// Second write against the stale revision must lose.
	ok, err = st.WriteRoomIfRevisionMatches(ctx, roomID, *state, rev)
	if err != nil {
		t.Fatalf("conditional write: %v", err)
	}
	if ok {
		t.Fatal("conditional write at stale revision should fail")
	}

	got, rev2, err := st.ReadRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("re-read room: %v", err)
	}
	if rev2 != rev+1 {
		t.Fatalf("revision after write = %d, want %d", rev2, rev+1)
	}
	if got.Status != "active" || !got.Participants["p1"].IsReady {
		t.Fatalf("state after write = %+v", got)
	}
}

func TestLiveWritesAdvanceRevision(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	ctx := context.Background()
	roomID := store.NewID()
	if err := st.EnsureRoom(ctx, roomID, "p1"); err != nil {
		t.Fatalf("ensure room: %v", err)
	}

	_, rev, err := st.ReadRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("read room: %v", err)
	}

	steps := []struct {
		name  string
		write func() error
	}{
		{"upsert", func() error { return st.UpsertParticipant(ctx, roomID, "p1", "Ada") }},
		{"ready", func() error { return st.SetParticipantReady(ctx, roomID, "p1", true) }},
		{"role", func() error { return st.SetParticipantRole(ctx, roomID, "p1", "dealer") }},
		{"remove", func() error { return st.RemoveParticipant(ctx, roomID, "p1") }},
	}
	for _, step := range steps {
		if err := step.write(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		_, next, err := st.ReadRoom(ctx, roomID)
		if err != nil {
			t.Fatalf("%s: re-read: %v", step.name, err)
		}
		if next != rev+1 {
			t.Fatalf("%s: revision = %d, want %d", step.name, next, rev+1)
		}
		rev = next
	}

	// A conditional write holding a revision read before a live write must
	// lose so it cannot erase that write.
	state, rev, err := st.ReadRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("read room: %v", err)
	}
	if err := st.UpsertParticipant(ctx, roomID, "p2", "Grace"); err != nil {
		t.Fatalf("concurrent upsert: %v", err)
	}
	ok, err := st.WriteRoomIfRevisionMatches(ctx, roomID, *state, rev)
	if err != nil {
		t.Fatalf("conditional write: %v", err)
	}
	if ok {
		t.Fatal("conditional write should lose to the interleaved upsert")
	}
	got, _, err := st.ReadRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("re-read room: %v", err)
	}
	if _, present := got.Participants["p2"]; !present {
		t.Fatal("interleaved participant row must survive the failed write")
	}
}

func TestParticipantWriteOnMissingRoom(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	err := st.UpsertParticipant(context.Background(), "missing", "p1", "Ada")
	if err != store.ErrNotFound {
		t.Fatalf("UpsertParticipant(missing room) error = %v, want ErrNotFound", err)
	}
}

func TestFindRoomsByParticipant(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	ctx := context.Background()
	roomA, roomB := store.NewID(), store.NewID()
	for _, id := range []string{roomA, roomB} {
		if err := st.EnsureRoom(ctx, id, "p1"); err != nil {
			t.Fatalf("ensure room: %v", err)
		}
	}
	if err := st.UpsertParticipant(ctx, roomA, "p1", "Ada"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertParticipant(ctx, roomB, "p1", "Ada"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertParticipant(ctx, roomB, "p2", "Grace"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rooms, err := st.FindRoomsByParticipant(ctx, "p1")
	if err != nil {
		t.Fatalf("find rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("rooms for p1 = %v, want 2 entries", rooms)
	}
	rooms, err = st.FindRoomsByParticipant(ctx, "p2")
	if err != nil {
		t.Fatalf("find rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != roomB {
		t.Fatalf("rooms for p2 = %v, want [%s]", rooms, roomB)
	}
}

func TestReadRoomNotFound(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	if _, _, err := st.ReadRoom(context.Background(), "missing"); err != store.ErrNotFound {
		t.Fatalf("ReadRoom(missing) error = %v, want ErrNotFound", err)
	}
}

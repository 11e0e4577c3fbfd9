package liveroom

import (
	"sort"
	"testing"
)

func TestActiveRoomsFilter(t *testing.T) {
	st := NewStore()

	busy := st.Ensure("room-busy")
	busy.UpsertParticipant("p1", "Ada", true)
	busy.UpsertParticipant("p2", "Grace", false)

	idle := st.Ensure("room-idle")
	idle.UpsertParticipant("p3", "Edsger", false)
	idle.UpsertParticipant("p4", "Barbara", false)

	st.Ensure("room-empty")

	got := st.ActiveRooms()
	sort.Strings(got)
	if len(got) != 1 || got[0] != "room-busy" {
		t.Fatalf("ActiveRooms() = %v, want [room-busy]", got)
	}
}

func TestVersionBumpMonotonic(t *testing.T) {
	room := NewStore().Ensure("r1")
	var last uint64
	for i := 0; i < 5; i++ {
		v := room.BumpVersion()
		if v != last+1 {
			t.Fatalf("BumpVersion() = %d after %d, want +1 steps", v, last)
		}
		last = v
	}
	if room.Version() != 5 {
		t.Fatalf("Version() = %d, want 5", room.Version())
	}
}

func TestRestoreOverwritesStaleView(t *testing.T) {
	room := NewStore().Ensure("r1")
	room.UpsertParticipant("p1", "Ada", false)

	room.Restore("p1", "Ada", true, "dealer")

	view, ok := room.Participant("p1")
	if !ok {
		t.Fatal("participant missing after restore")
	}
	if !view.IsLive || !view.IsReady || view.RoleAssignment != "dealer" {
		t.Fatalf("restored view = %+v, want live/ready/dealer", view)
	}
}

func TestApplyCorrection(t *testing.T) {
	room := NewStore().Ensure("r1")
	room.UpsertParticipant("p1", "Ada", true)
	room.UpsertParticipant("p2", "Grace", false)
	room.SetOwner("p1")

	room.ApplyCorrection(Correction{
		OwnerID:  "p2",
		Ready:    map[string]bool{"p1": true},
		Roles:    map[string]string{"p1": "north"},
		Removals: []string{"p2"},
	})

	snap := room.Snapshot()
	if snap.OwnerID != "p2" {
		t.Fatalf("OwnerID = %q, want p2", snap.OwnerID)
	}
	if _, ok := snap.Participants["p2"]; ok {
		t.Fatal("p2 still present after removal correction")
	}
	if v := snap.Participants["p1"]; !v.IsReady || v.RoleAssignment != "north" {
		t.Fatalf("p1 view = %+v, want ready with role north", v)
	}
}

func TestApplyCorrectionSparesLiveParticipant(t *testing.T) {
	room := NewStore().Ensure("r1")
	room.UpsertParticipant("p1", "Ada", true)

	// Removal lists are built from an earlier snapshot; if the participant
	// went live in between, the removal must not apply.
	room.ApplyCorrection(Correction{Removals: []string{"p1"}})

	if v, ok := room.Participant("p1"); !ok || !v.IsLive {
		t.Fatalf("live participant removed by stale correction, view = %+v ok = %v", v, ok)
	}
}

func TestUpsertPreservesReadiness(t *testing.T) {
	room := NewStore().Ensure("r1")
	room.UpsertParticipant("p1", "Ada", true)
	room.SetReady("p1", true)
	room.AssignRole("p1", "south")

	// Reconnect with same identity must not clobber readiness or role.
	room.UpsertParticipant("p1", "Ada", true)

	view, _ := room.Participant("p1")
	if !view.IsReady || view.RoleAssignment != "south" {
		t.Fatalf("view after re-upsert = %+v, want ready/south preserved", view)
	}
}

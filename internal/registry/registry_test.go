package registry

import (
	"context"
	"sync"
	"testing"
)

func TestSwitchRoomCreatesSessionAndMembership(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	old, err := reg.SwitchRoom(ctx, "alice", DefaultRoom)
	if err != nil {
		t.Fatalf("SwitchRoom failed: %v", err)
	}
	if old != "" {
		t.Errorf("expected no previous room, got %q", old)
	}

	room, err := reg.CurrentRoom(ctx, "alice")
	if err != nil || room != DefaultRoom {
		t.Errorf("expected current room %q, got %q (err %v)", DefaultRoom, room, err)
	}

	members, _ := reg.RoomMembers(ctx, DefaultRoom)
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("expected lobby members [alice], got %v", members)
	}
}

func TestSwitchRoomMovesBetweenRooms(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	reg.SwitchRoom(ctx, "alice", DefaultRoom)
	old, err := reg.SwitchRoom(ctx, "alice", "dev")
	if err != nil {
		t.Fatalf("SwitchRoom failed: %v", err)
	}
	if old != DefaultRoom {
		t.Errorf("expected old room %q, got %q", DefaultRoom, old)
	}

	assertExactlyOneRoom(t, reg, "alice", "dev")
}

func TestSwitchRoomSameRoomIsStable(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	reg.SwitchRoom(ctx, "alice", "dev")
	old, err := reg.SwitchRoom(ctx, "alice", "dev")
	if err != nil {
		t.Fatalf("SwitchRoom failed: %v", err)
	}
	if old != "dev" {
		t.Errorf("expected old room dev, got %q", old)
	}
	assertExactlyOneRoom(t, reg, "alice", "dev")
}

func TestClearSessionRemovesMembership(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	reg.SwitchRoom(ctx, "alice", "dev")
	room, err := reg.ClearSession(ctx, "alice")
	if err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if room != "dev" {
		t.Errorf("expected cleared room dev, got %q", room)
	}

	exists, _ := reg.SessionExists(ctx, "alice")
	if exists {
		t.Error("session should be gone")
	}
	members, _ := reg.RoomMembers(ctx, "dev")
	if len(members) != 0 {
		t.Errorf("expected no members in dev, got %v", members)
	}

	// Second clear is a no-op.
	room, err = reg.ClearSession(ctx, "alice")
	if err != nil || room != "" {
		t.Errorf("expected empty second clear, got %q (err %v)", room, err)
	}
}

func TestConcurrentSwitchesKeepSingleMembership(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()
	rooms := []string{"a", "b", "c", "d"}

	reg.SwitchRoom(ctx, "alice", DefaultRoom)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.SwitchRoom(ctx, "alice", rooms[i%len(rooms)])
		}(i)
	}
	wg.Wait()

	room, err := reg.CurrentRoom(ctx, "alice")
	if err != nil || room == "" {
		t.Fatalf("expected a current room, got %q (err %v)", room, err)
	}
	assertExactlyOneRoom(t, reg, "alice", room)
}

func TestConcurrentSwitchAndClear(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		reg.SwitchRoom(ctx, "alice", DefaultRoom)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.SwitchRoom(ctx, "alice", "dev")
		}()
		go func() {
			defer wg.Done()
			reg.ClearSession(ctx, "alice")
		}()
		wg.Wait()

		// Whatever interleaving happened, the session and membership
		// must agree: either both gone, or both pointing at one room.
		room, _ := reg.CurrentRoom(ctx, "alice")
		if room == "" {
			for _, name := range mustRoomNames(t, reg) {
				for _, member := range mustMembers(t, reg, name) {
					if member == "alice" {
						t.Fatalf("no session but still member of %q", name)
					}
				}
			}
		} else {
			assertExactlyOneRoom(t, reg, "alice", room)
		}

		reg.ClearSession(ctx, "alice")
	}
}

func TestSubscriptions(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	if err := reg.Subscribe(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	ok, err := reg.IsSubscriber(ctx, "alice", "bob")
	if err != nil || !ok {
		t.Errorf("bob should be subscribed to alice (err %v)", err)
	}
	ok, _ = reg.IsSubscriber(ctx, "alice", "carol")
	if ok {
		t.Error("carol should not be subscribed")
	}

	if err := reg.Unsubscribe(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	ok, _ = reg.IsSubscriber(ctx, "alice", "bob")
	if ok {
		t.Error("bob should be unsubscribed")
	}
}

func TestSessionsSnapshot(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	reg.SwitchRoom(ctx, "alice", "dev")
	reg.SwitchRoom(ctx, "bob", DefaultRoom)

	sessions, err := reg.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if sessions["alice"] != "dev" || sessions["bob"] != DefaultRoom {
		t.Errorf("unexpected sessions map: %v", sessions)
	}
}

// assertExactlyOneRoom verifies the core membership invariant: the user
// is a member of exactly one room's set, equal to the session's room.
func assertExactlyOneRoom(t *testing.T, reg Registry, user, want string) {
	t.Helper()
	ctx := context.Background()

	room, err := reg.CurrentRoom(ctx, user)
	if err != nil {
		t.Fatalf("CurrentRoom failed: %v", err)
	}
	if room != want {
		t.Fatalf("expected session room %q, got %q", want, room)
	}

	memberOf := 0
	for _, name := range mustRoomNames(t, reg) {
		for _, member := range mustMembers(t, reg, name) {
			if member == user {
				memberOf++
				if name != want {
					t.Errorf("member of %q, expected only %q", name, want)
				}
			}
		}
	}
	if memberOf != 1 {
		t.Errorf("expected membership in exactly 1 room, got %d", memberOf)
	}
}

func mustRoomNames(t *testing.T, reg Registry) []string {
	t.Helper()
	names, err := reg.RoomNames(context.Background())
	if err != nil {
		t.Fatalf("RoomNames failed: %v", err)
	}
	return names
}

func mustMembers(t *testing.T, reg Registry, room string) []string {
	t.Helper()
	members, err := reg.RoomMembers(context.Background(), room)
	if err != nil {
		t.Fatalf("RoomMembers failed: %v", err)
	}
	return members
}

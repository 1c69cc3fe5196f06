// Package registry holds the authoritative cross-instance session state:
// which room each logged-in user is in, room membership sets, and
// per-publisher subscriber sets. A chat event's membership check may run
// on an instance that owns neither endpoint, so every method reads and
// writes shared state.
package registry

import "context"

// DefaultRoom is joined on login and by /leave.
const DefaultRoom = "lobby"

type Registry interface {
	// CurrentRoom returns the user's room, or "" when no session exists.
	CurrentRoom(ctx context.Context, user string) (string, error)

	// SwitchRoom moves the user into room, creating it if absent, and
	// returns the previous room ("" when there was none). The
	// read-modify-write is atomic per username: a user is never in zero
	// or two rooms, even under concurrent switches and cleanup.
	SwitchRoom(ctx context.Context, user, room string) (string, error)

	// ClearSession removes the user's session and room membership
	// atomically, returning the room the user was in ("" when no
	// session existed).
	ClearSession(ctx context.Context, user string) (string, error)

	SessionExists(ctx context.Context, user string) (bool, error)

	// Sessions returns the full username -> room map.
	Sessions(ctx context.Context) (map[string]string, error)

	RoomNames(ctx context.Context) ([]string, error)
	RoomMembers(ctx context.Context, room string) ([]string, error)

	// Subscribe adds subscriber to publisher's subscriber set.
	Subscribe(ctx context.Context, publisher, subscriber string) error
	Unsubscribe(ctx context.Context, publisher, subscriber string) error
	IsSubscriber(ctx context.Context, publisher, subscriber string) (bool, error)
}

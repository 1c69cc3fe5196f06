package registry

import (
	"context"
	"sync"
)

// MemoryRegistry is a process-local Registry for single-instance
// deployments and tests.
type MemoryRegistry struct {
	mu            sync.Mutex
	sessions      map[string]string
	rooms         map[string]map[string]bool
	subscriptions map[string]map[string]bool
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions:      make(map[string]string),
		rooms:         make(map[string]map[string]bool),
		subscriptions: make(map[string]map[string]bool),
	}
}

func (m *MemoryRegistry) CurrentRoom(_ context.Context, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[user], nil
}

func (m *MemoryRegistry) SwitchRoom(_ context.Context, user, room string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.sessions[user]
	if old != "" && old != room {
		m.removeMember(old, user)
	}
	if m.rooms[room] == nil {
		m.rooms[room] = make(map[string]bool)
	}
	m.rooms[room][user] = true
	m.sessions[user] = room
	return old, nil
}

func (m *MemoryRegistry) ClearSession(_ context.Context, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.sessions[user]
	if old == "" {
		return "", nil
	}
	m.removeMember(old, user)
	delete(m.sessions, user)
	return old, nil
}

// removeMember drops the user from a room set, deleting a drained room
// to mirror Redis removing empty set keys. Callers hold mu.
func (m *MemoryRegistry) removeMember(room, user string) {
	if members, ok := m.rooms[room]; ok {
		delete(members, user)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

func (m *MemoryRegistry) SessionExists(_ context.Context, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[user]
	return ok, nil
}

func (m *MemoryRegistry) Sessions(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.sessions))
	for user, room := range m.sessions {
		out[user] = room
	}
	return out, nil
}

func (m *MemoryRegistry) RoomNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemoryRegistry) RoomMembers(_ context.Context, room string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]string, 0, len(m.rooms[room]))
	for user := range m.rooms[room] {
		members = append(members, user)
	}
	return members, nil
}

func (m *MemoryRegistry) Subscribe(_ context.Context, publisher, subscriber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscriptions[publisher] == nil {
		m.subscriptions[publisher] = make(map[string]bool)
	}
	m.subscriptions[publisher][subscriber] = true
	return nil
}

func (m *MemoryRegistry) Unsubscribe(_ context.Context, publisher, subscriber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions[publisher], subscriber)
	return nil
}

func (m *MemoryRegistry) IsSubscriber(_ context.Context, publisher, subscriber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[publisher][subscriber], nil
}

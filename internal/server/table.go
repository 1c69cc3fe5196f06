package server

import "sync"

// dispatchTable maps connections owned by this instance to usernames.
// All mutation goes through its methods; nothing else touches the map.
type dispatchTable struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newDispatchTable() *dispatchTable {
	return &dispatchTable{clients: make(map[*client]struct{})}
}

func (t *dispatchTable) add(c *client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[c] = struct{}{}
}

func (t *dispatchTable) remove(c *client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, c)
}

// findByUser returns a locally-owned connection for the username, or nil.
func (t *dispatchTable) findByUser(username string) *client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for c := range t.clients {
		if c.username == username {
			return c
		}
	}
	return nil
}

// snapshot copies the current client set so delivery can iterate without
// holding the lock across socket writes.
func (t *dispatchTable) snapshot() []*client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*client, 0, len(t.clients))
	for c := range t.clients {
		out = append(out, c)
	}
	return out
}

func (t *dispatchTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

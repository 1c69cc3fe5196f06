package server

import (
	"sync/atomic"

	"chat-relay/internal/transport"

	"github.com/google/uuid"
)

// client is a locally-owned authenticated connection, bidirectionally
// mapped to its username for its lifetime.
type client struct {
	id       string
	username string
	conn     transport.Conn

	// closed guards cleanup: exactly one caller wins the transition.
	closed int32
}

func newClient(conn transport.Conn, username string) *client {
	return &client{
		id:       uuid.New().String(),
		username: username,
		conn:     conn,
	}
}

// beginClose returns true for exactly one caller per client.
func (c *client) beginClose() bool {
	return atomic.CompareAndSwapInt32(&c.closed, 0, 1)
}

// send writes one line to the client. Delivery failures are the caller's
// to swallow; a dead socket is reaped by its own read loop.
func (c *client) send(line string) error {
	return c.conn.WriteLine(line)
}

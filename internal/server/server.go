package server

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"chat-relay/internal/auth"
	"chat-relay/internal/bus"
	"chat-relay/internal/protocol"
	"chat-relay/internal/registry"
	"chat-relay/internal/transport"
)

// Server owns this instance's connections: it accepts them, drives their
// protocol loops, and relays bus events to the ones that qualify.
type Server struct {
	auth  *auth.Service
	reg   registry.Registry
	bus   bus.Bus
	table *dispatchTable

	ctx    context.Context
	cancel context.CancelFunc
}

func New(authSvc *auth.Service, reg registry.Registry, b bus.Bus) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		auth:   authSvc,
		reg:    reg,
		bus:    b,
		table:  newDispatchTable(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Serve accepts connections until the listener closes, one goroutine per
// connection.
func (s *Server) Serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			slog.Error("Accept error", "error", err)
			continue
		}
		go s.Handle(transport.NewLineConn(conn))
	}
}

// Stop cancels the accept and relay loops. Open connections are closed
// by their own read loops observing transport errors.
func (s *Server) Stop() {
	s.cancel()
}

// Handle runs one connection from authentication to cleanup. Usable for
// any line transport, including the WebSocket listener.
func (s *Server) Handle(conn transport.Conn) {
	username, err := s.auth.Authenticate(s.ctx, conn)
	if err != nil {
		conn.Close()
		return
	}

	c := newClient(conn, username)
	s.table.add(c)

	// The session was placed in the lobby during login; announce it.
	s.publishChat(protocol.Broadcast(username, registry.DefaultRoom, username+" joined the lobby"))
	slog.Info("Client connected", "username", username, "remote", conn.RemoteAddr())

	defer s.cleanup(c)

	for {
		line, err := conn.ReadLine()
		if err != nil {
			slog.Info("Client disconnected", "username", username, "error", err)
			return
		}
		s.dispatch(c, line)
	}
}

// dispatch routes one inbound line by command prefix; anything that is
// not a command is chat content.
func (s *Server) dispatch(c *client, line string) {
	switch {
	case strings.HasPrefix(line, "/join"):
		room, ok := commandArg(line, "/join")
		if !ok {
			c.send(protocol.System("Usage: /join <room>"))
			return
		}
		s.switchRoom(c, room)

	case strings.HasPrefix(line, "/leave"):
		s.switchRoom(c, registry.DefaultRoom)

	case line == "/rooms":
		names, err := s.reg.RoomNames(s.ctx)
		if err != nil {
			c.send(protocol.System("Could not list rooms."))
			return
		}
		c.send(protocol.System("Active Rooms: " + strings.Join(names, ", ")))

	case strings.HasPrefix(line, "/subscribe"):
		target, ok := commandArg(line, "/subscribe")
		if !ok {
			c.send(protocol.System("Usage: /subscribe <user>"))
			return
		}
		if err := s.reg.Subscribe(s.ctx, target, c.username); err != nil {
			c.send(protocol.System("Could not subscribe."))
			return
		}
		slog.Info("Subscribed", "subscriber", c.username, "publisher", target)
		c.send(protocol.System("Subscribed to " + target))

	case strings.HasPrefix(line, "/unsubscribe"):
		target, ok := commandArg(line, "/unsubscribe")
		if !ok {
			c.send(protocol.System("Usage: /unsubscribe <user>"))
			return
		}
		if err := s.reg.Unsubscribe(s.ctx, target, c.username); err != nil {
			c.send(protocol.System("Could not unsubscribe."))
			return
		}
		slog.Info("Unsubscribed", "subscriber", c.username, "publisher", target)
		c.send(protocol.System("Unsubscribed from " + target))

	default:
		s.chat(c, line)
	}
}

// commandArg extracts the single argument of "<cmd> <arg>" lines.
func commandArg(line, cmd string) (string, bool) {
	rest := strings.TrimPrefix(line, cmd)
	if rest == line || (rest != "" && rest[0] != ' ') {
		return "", false
	}
	arg := strings.TrimSpace(rest)
	if arg == "" || strings.ContainsRune(arg, ' ') {
		return "", false
	}
	return arg, true
}

// chat publishes one room broadcast and one pub/sub event for a message,
// unconditionally and independently of each other.
func (s *Server) chat(c *client, text string) {
	room, err := s.reg.CurrentRoom(s.ctx, c.username)
	if err != nil || room == "" {
		return
	}
	slog.Info("Chat message", "room", room, "username", c.username)
	s.publishChat(protocol.Broadcast(c.username, room, protocol.RoomMessage(room, c.username, text)))
	s.publishChat(protocol.PubSub(c.username, protocol.SubscriberMessage(c.username, text)))
}

// switchRoom moves the client between rooms. The registry makes the
// read-modify-write atomic per username; this instance only decides what
// to announce based on the room it was moved out of.
func (s *Server) switchRoom(c *client, newRoom string) {
	oldRoom, err := s.reg.SwitchRoom(s.ctx, c.username, newRoom)
	if err != nil {
		slog.Error("Room switch failed", "username", c.username, "room", newRoom, "error", err)
		c.send(protocol.System("Could not join room."))
		return
	}

	if oldRoom != "" && oldRoom != newRoom {
		s.publishChat(protocol.Broadcast(c.username, oldRoom, c.username+" left "+oldRoom))
	}

	slog.Info("Room switched", "username", c.username, "from", oldRoom, "to", newRoom)
	c.send(protocol.System("Joined room: " + newRoom))
	s.publishChat(protocol.Broadcast(c.username, newRoom, c.username+" joined "+newRoom))
}

// cleanup tears down one connection. Safe to race with the relay's
// force-close: exactly one caller proceeds past beginClose.
func (s *Server) cleanup(c *client) {
	if !c.beginClose() {
		return
	}

	s.table.remove(c)

	room, err := s.reg.ClearSession(s.ctx, c.username)
	if err != nil {
		slog.Error("Session cleanup failed", "username", c.username, "error", err)
	} else if room != "" {
		s.publishChat(protocol.Broadcast(c.username, room, c.username+" left the chat"))
		slog.Info("Cleaned up session", "username", c.username)
	}

	// Close failures are irrelevant at this point.
	c.conn.Close()
}

func (s *Server) publishChat(ev protocol.Event) {
	payload, err := ev.Encode()
	if err != nil {
		slog.Error("Failed to encode event", "error", err)
		return
	}
	if err := s.bus.Publish(s.ctx, protocol.ChatChannel, payload); err != nil {
		slog.Error("Failed to publish event", "type", ev.Type, "error", err)
	}
}

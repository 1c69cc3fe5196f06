package server

import (
	"fmt"
	"log/slog"

	"chat-relay/internal/bus"
	"chat-relay/internal/protocol"
)

// StartRelay subscribes to the chat and control channels and runs one
// dispatch loop per channel for the life of the instance. The loops are
// decoupled from connection loops: a slow or dead socket never stalls
// the bus.
func (s *Server) StartRelay() error {
	chatSub, err := s.bus.Subscribe(s.ctx, protocol.ChatChannel)
	if err != nil {
		return fmt.Errorf("subscribe chat: %w", err)
	}
	controlSub, err := s.bus.Subscribe(s.ctx, protocol.ControlChannel)
	if err != nil {
		chatSub.Close()
		return fmt.Errorf("subscribe control: %w", err)
	}

	go s.dispatchLoop(chatSub, s.routeChat)
	go s.dispatchLoop(controlSub, s.routeControl)
	return nil
}

func (s *Server) dispatchLoop(sub bus.Subscription, route func(protocol.Event)) {
	defer sub.Close()
	for {
		select {
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			ev, err := protocol.DecodeEvent(payload)
			if err != nil {
				slog.Error("Failed to decode bus event", "error", err)
				continue
			}
			route(ev)
		case <-s.ctx.Done():
			return
		}
	}
}

// routeChat decides, per locally-owned connection, whether an inbound
// chat event qualifies for delivery. Room membership is re-checked
// against the registry at delivery time rather than trusting the event's
// metadata; that narrows the race window during concurrent room
// switches.
func (s *Server) routeChat(ev protocol.Event) {
	for _, c := range s.table.snapshot() {
		if c.username == ev.Sender {
			continue
		}

		deliver := false
		switch ev.Type {
		case protocol.EventBroadcast:
			room, err := s.reg.CurrentRoom(s.ctx, c.username)
			if err != nil {
				continue
			}
			deliver = room == ev.Room

		case protocol.EventPubSub:
			ok, err := s.reg.IsSubscriber(s.ctx, ev.Sender, c.username)
			if err != nil {
				continue
			}
			deliver = ok
		}

		if deliver {
			// A failed write means the socket is dying; its own read
			// loop will clean it up.
			_ = c.send(ev.Content)
		}
	}
}

// routeControl handles cross-instance administrative signals. A force
// logout closes the target's local connection, which drives that
// connection's cleanup through its read loop.
func (s *Server) routeControl(ev protocol.Event) {
	if ev.Type != protocol.EventForceLogout {
		return
	}

	c := s.table.findByUser(ev.Target)
	if c == nil {
		return
	}

	_ = c.send(protocol.ForcedLogout)
	c.conn.Close()
	slog.Info("Force logged out local user", "username", ev.Target)
}

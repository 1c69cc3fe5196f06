package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/bus"
	"chat-relay/internal/protocol"
	"chat-relay/internal/registry"

	"golang.org/x/crypto/bcrypt"
)

// scriptConn feeds a fixed request sequence and records replies.
type scriptConn struct {
	lines   []string
	idx     int
	replies []string
}

func (c *scriptConn) ReadLine() (string, error) {
	if c.idx >= len(c.lines) {
		return "", io.EOF
	}
	line := c.lines[c.idx]
	c.idx++
	return line, nil
}

func (c *scriptConn) WriteLine(text string) error {
	c.replies = append(c.replies, text)
	return nil
}

func (c *scriptConn) Close() error { return nil }

func (c *scriptConn) RemoteAddr() net.Addr { return nil }

type memCreds struct {
	mu    sync.Mutex
	users map[string]string
}

func newMemCreds() *memCreds {
	return &memCreds{users: make(map[string]string)}
}

func (m *memCreds) Lookup(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[username], nil
}

func (m *memCreds) Store(_ context.Context, username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = hash
	return nil
}

func (m *memCreds) Exists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[username]
	return ok, nil
}

func (m *memCreds) Seed(ctx context.Context, defaults map[string]string) error {
	for username, password := range defaults {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		m.Store(ctx, username, string(hash))
	}
	return nil
}

func newTestService(creds CredentialStore, reg registry.Registry, b bus.Bus) *Service {
	return NewService(creds, reg, b, 10*time.Millisecond)
}

func TestLoginSuccess(t *testing.T) {
	creds := newMemCreds()
	creds.Seed(context.Background(), map[string]string{"alice": "pw"})
	reg := registry.NewMemoryRegistry()
	svc := newTestService(creds, reg, bus.NewMemoryBus())

	conn := &scriptConn{lines: []string{"LOGIN alice pw"}}
	username, err := svc.Authenticate(context.Background(), conn)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if username != "alice" {
		t.Errorf("expected alice, got %q", username)
	}
	if len(conn.replies) != 1 || conn.replies[0] != protocol.AuthSuccess {
		t.Errorf("expected AUTH_SUCCESS, got %v", conn.replies)
	}

	room, _ := reg.CurrentRoom(context.Background(), "alice")
	if room != registry.DefaultRoom {
		t.Errorf("expected session in lobby, got %q", room)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	creds := newMemCreds()
	creds.Seed(context.Background(), map[string]string{"alice": "pw"})
	svc := newTestService(creds, registry.NewMemoryRegistry(), bus.NewMemoryBus())

	conn := &scriptConn{lines: []string{"LOGIN alice wrong"}}
	_, err := svc.Authenticate(context.Background(), conn)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(conn.replies) != 1 || !strings.HasPrefix(conn.replies[0], "AUTH_FAILED") {
		t.Errorf("expected AUTH_FAILED reply, got %v", conn.replies)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestService(newMemCreds(), registry.NewMemoryRegistry(), bus.NewMemoryBus())

	conn := &scriptConn{lines: []string{"LOGIN ghost pw"}}
	_, err := svc.Authenticate(context.Background(), conn)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	creds := newMemCreds()
	svc := newTestService(creds, registry.NewMemoryRegistry(), bus.NewMemoryBus())

	conn := &scriptConn{lines: []string{
		"REGISTER dave hunter2",
		"LOGIN dave hunter2",
	}}
	username, err := svc.Authenticate(context.Background(), conn)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if username != "dave" {
		t.Errorf("expected dave, got %q", username)
	}
	if len(conn.replies) != 2 ||
		conn.replies[0] != protocol.RegisterSuccess ||
		conn.replies[1] != protocol.AuthSuccess {
		t.Errorf("unexpected replies: %v", conn.replies)
	}
}

func TestRegisterTakenUsername(t *testing.T) {
	creds := newMemCreds()
	creds.Seed(context.Background(), map[string]string{"alice": "pw"})
	svc := newTestService(creds, registry.NewMemoryRegistry(), bus.NewMemoryBus())

	conn := &scriptConn{lines: []string{"REGISTER alice other"}}
	_, err := svc.Authenticate(context.Background(), conn)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if len(conn.replies) != 1 || !strings.HasPrefix(conn.replies[0], "REGISTER_FAILED") {
		t.Errorf("expected REGISTER_FAILED reply, got %v", conn.replies)
	}
}

func TestMalformedRequest(t *testing.T) {
	svc := newTestService(newMemCreds(), registry.NewMemoryRegistry(), bus.NewMemoryBus())

	for _, line := range []string{"HELLO", "LOGIN alice", "REGISTER a b c d", ""} {
		conn := &scriptConn{lines: []string{line}}
		_, err := svc.Authenticate(context.Background(), conn)
		if !errors.Is(err, ErrMalformedRequest) {
			t.Errorf("line %q: expected ErrMalformedRequest, got %v", line, err)
		}
	}
}

func TestDuplicateLoginPublishesForceLogout(t *testing.T) {
	creds := newMemCreds()
	creds.Seed(context.Background(), map[string]string{"alice": "pw"})
	reg := registry.NewMemoryRegistry()
	b := bus.NewMemoryBus()
	svc := newTestService(creds, reg, b)

	controlSub, err := b.Subscribe(context.Background(), protocol.ControlChannel)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// First login holds the session.
	first := &scriptConn{lines: []string{"LOGIN alice pw"}}
	if _, err := svc.Authenticate(context.Background(), first); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	second := &scriptConn{lines: []string{"LOGIN alice pw"}}
	username, err := svc.Authenticate(context.Background(), second)
	if err != nil || username != "alice" {
		t.Fatalf("second login should win, got %q (err %v)", username, err)
	}

	select {
	case payload := <-controlSub.Messages():
		ev, err := protocol.DecodeEvent(payload)
		if err != nil {
			t.Fatalf("decode control event: %v", err)
		}
		if ev.Type != protocol.EventForceLogout || ev.Target != "alice" {
			t.Errorf("unexpected control event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a FORCE_LOGOUT control event")
	}
}

func TestFirstLoginDoesNotEvict(t *testing.T) {
	creds := newMemCreds()
	creds.Seed(context.Background(), map[string]string{"alice": "pw"})
	b := bus.NewMemoryBus()
	svc := newTestService(creds, registry.NewMemoryRegistry(), b)

	controlSub, _ := b.Subscribe(context.Background(), protocol.ControlChannel)

	conn := &scriptConn{lines: []string{"LOGIN alice pw"}}
	if _, err := svc.Authenticate(context.Background(), conn); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	select {
	case payload := <-controlSub.Messages():
		t.Errorf("unexpected control event: %s", payload)
	case <-time.After(20 * time.Millisecond):
	}
}

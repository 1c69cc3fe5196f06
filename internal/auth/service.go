package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chat-relay/internal/bus"
	"chat-relay/internal/protocol"
	"chat-relay/internal/registry"
	"chat-relay/internal/transport"

	"golang.org/x/crypto/bcrypt"
)

// Service drives the pre-auth protocol on a connection: REGISTER and
// LOGIN lines, including the duplicate-session eviction on login.
type Service struct {
	creds CredentialStore
	reg   registry.Registry
	bus   bus.Bus

	// grace is how long a login waits after publishing FORCE_LOGOUT for
	// the evicted session's instance to react. Best effort, no ack; two
	// sessions can coexist briefly if the other instance is slow.
	grace time.Duration
}

func NewService(creds CredentialStore, reg registry.Registry, b bus.Bus, grace time.Duration) *Service {
	return &Service{creds: creds, reg: reg, bus: b, grace: grace}
}

// Authenticate reads auth requests until a login succeeds or fails. On
// success the user's session is set to the lobby (a newer login always
// wins) and the username is returned. On any error the caller closes the
// connection.
func (s *Service) Authenticate(ctx context.Context, conn transport.Conn) (string, error) {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return "", err
		}

		fields := strings.Fields(line)
		switch {
		case len(fields) == 3 && fields[0] == "REGISTER":
			if err := s.register(ctx, conn, fields[1], fields[2]); err != nil {
				return "", err
			}
			// Registration succeeded; await a LOGIN on the same
			// connection.

		case len(fields) == 3 && fields[0] == "LOGIN":
			return s.login(ctx, conn, fields[1], fields[2])

		default:
			conn.WriteLine(protocol.AuthFailed("Malformed request."))
			return "", ErrMalformedRequest
		}
	}
}

func (s *Service) register(ctx context.Context, conn transport.Conn, username, password string) error {
	taken, err := s.creds.Exists(ctx, username)
	if err != nil {
		conn.WriteLine(protocol.RegisterFailed("Server error."))
		return err
	}
	if taken {
		conn.WriteLine(protocol.RegisterFailed("Username already exists."))
		slog.Info("Registration rejected", "username", username)
		return ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		conn.WriteLine(protocol.RegisterFailed("Server error."))
		return err
	}
	if err := s.creds.Store(ctx, username, hash); err != nil {
		conn.WriteLine(protocol.RegisterFailed("Server error."))
		return err
	}

	conn.WriteLine(protocol.RegisterSuccess)
	slog.Info("New user registered", "username", username)
	return nil
}

func (s *Service) login(ctx context.Context, conn transport.Conn, username, password string) (string, error) {
	hash, err := s.creds.Lookup(ctx, username)
	if err != nil {
		conn.WriteLine(protocol.AuthFailed("Invalid credentials."))
		return "", err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		conn.WriteLine(protocol.AuthFailed("Invalid credentials."))
		return "", ErrInvalidCredentials
	}

	if err := s.evictExisting(ctx, username); err != nil {
		slog.Warn("Session check failed", "username", username, "error", err)
	}

	// New login wins: the session is rewritten unconditionally, moving
	// the user into the lobby and out of any stale room membership.
	if _, err := s.reg.SwitchRoom(ctx, username, registry.DefaultRoom); err != nil {
		conn.WriteLine(protocol.AuthFailed("Server error."))
		return "", err
	}

	conn.WriteLine(protocol.AuthSuccess)
	slog.Info("User logged in", "username", username)
	return username, nil
}

// evictExisting publishes a FORCE_LOGOUT for an already-live session and
// waits the grace interval so the owning instance can close the old
// connection before this login completes.
func (s *Service) evictExisting(ctx context.Context, username string) error {
	exists, err := s.reg.SessionExists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	slog.Info("Duplicate login, forcing logout", "username", username)
	payload, err := protocol.ForceLogout(username).Encode()
	if err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, protocol.ControlChannel, payload); err != nil {
		return err
	}

	time.Sleep(s.grace)
	return nil
}

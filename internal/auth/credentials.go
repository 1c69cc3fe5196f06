package auth

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/internal/database"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the username -> password-hash lookup used only by
// authentication.
type CredentialStore interface {
	// Lookup returns the stored bcrypt hash, or "" when the username is
	// unknown.
	Lookup(ctx context.Context, username string) (string, error)
	Store(ctx context.Context, username, hash string) error
	Exists(ctx context.Context, username string) (bool, error)

	// Seed writes default accounts unless the store already holds users.
	Seed(ctx context.Context, defaults map[string]string) error
}

// HashPassword produces a salted bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

const usersKey = "users"

// RedisCredentials stores hashes in the shared `users` hash so every
// instance authenticates against the same accounts.
type RedisCredentials struct {
	client *database.RedisClient
}

func NewRedisCredentials(client *database.RedisClient) *RedisCredentials {
	return &RedisCredentials{client: client}
}

func (c *RedisCredentials) Lookup(ctx context.Context, username string) (string, error) {
	hash, err := c.client.GetClient().HGet(ctx, usersKey, username).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup credentials: %w", err)
	}
	return hash, nil
}

func (c *RedisCredentials) Store(ctx context.Context, username, hash string) error {
	return c.client.GetClient().HSet(ctx, usersKey, username, hash).Err()
}

func (c *RedisCredentials) Exists(ctx context.Context, username string) (bool, error) {
	return c.client.GetClient().HExists(ctx, usersKey, username).Result()
}

func (c *RedisCredentials) Seed(ctx context.Context, defaults map[string]string) error {
	exists, err := c.client.GetClient().Exists(ctx, usersKey).Result()
	if err != nil {
		return fmt.Errorf("check users key: %w", err)
	}
	if exists > 0 {
		return nil
	}

	seeded := make(map[string]interface{}, len(defaults))
	for username, password := range defaults {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		seeded[username] = hash
	}
	if err := c.client.GetClient().HSet(ctx, usersKey, seeded).Err(); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	slog.Info("Seeded user database", "count", len(defaults))
	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Credential is the gorm model backing the MySQL credential store.
type Credential struct {
	ID           uint   `gorm:"primarykey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	CreatedAt    time.Time
}

// MySQLCredentials backs the credential store with MySQL for deployments
// that keep accounts in a relational database instead of Redis.
type MySQLCredentials struct {
	db *gorm.DB
}

func NewMySQLCredentials(db *gorm.DB) (*MySQLCredentials, error) {
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("migrate credentials: %w", err)
	}
	return &MySQLCredentials{db: db}, nil
}

func (c *MySQLCredentials) Lookup(ctx context.Context, username string) (string, error) {
	var cred Credential
	err := c.db.WithContext(ctx).Where("username = ?", username).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup credentials: %w", err)
	}
	return cred.PasswordHash, nil
}

func (c *MySQLCredentials) Store(ctx context.Context, username, hash string) error {
	cred := Credential{Username: username, PasswordHash: hash}
	return c.db.WithContext(ctx).Create(&cred).Error
}

func (c *MySQLCredentials) Exists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&Credential{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (c *MySQLCredentials) Seed(ctx context.Context, defaults map[string]string) error {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Credential{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count credentials: %w", err)
	}
	if count > 0 {
		return nil
	}

	for username, password := range defaults {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		if err := c.Store(ctx, username, hash); err != nil {
			return fmt.Errorf("seed user %s: %w", username, err)
		}
	}

	slog.Info("Seeded user database", "count", len(defaults))
	return nil
}

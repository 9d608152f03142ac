package runtime

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/folio/config"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role; there is a single operator account.
const RoleAdmin = "admin"

var ErrBadCredentials = errors.New("invalid username or password")

// Credentials is the configured operator account.
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials hashes a plain password at startup unless a bcrypt hash is configured.
func NewCredentials(cfg config.AuthConfig) (*Credentials, error) {
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return nil, fmt.Errorf("admin username not configured")
	}
	if cfg.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.AdminPasswordHash)); err != nil {
			return nil, fmt.Errorf("admin_password_hash: %w", err)
		}
		return &Credentials{username: cfg.AdminUsername, hash: []byte(cfg.AdminPasswordHash)}, nil
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("admin password not configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Credentials{username: cfg.AdminUsername, hash: hash}, nil
}

// Verify compares both fields without short-circuiting on the username.
func (c *Credentials) Verify(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrBadCredentials
	}
	return nil
}

func (c *Credentials) Username() string { return c.username }

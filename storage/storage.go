// Package storage defines interfaces for loading users and sessions
// consulted by the security pipeline. It supports various backend
// implementations including in-memory and databases.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user ID has no backing record.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound is returned when a session key has no backing record.
var ErrSessionNotFound = errors.New("session not found")

// User is the principal attached to an authenticated request.
type User struct {
	ID           string
	Email        string
	Roles        []string
	Permissions  []string
	SessionID    string
	LastActivity time.Time
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user holds the named permission.
func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Session represents a server-side session record.
type Session struct {
	Key          string
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// UserStore loads user records by ID.
// All methods accept context.Context for tracing and cancellation.
type UserStore interface {
	// GetUser retrieves a user by ID. Returns ErrUserNotFound when no
	// record exists.
	GetUser(ctx context.Context, userID string) (*User, error)
}

// SessionStore checks server-side session liveness.
// All methods accept context.Context for tracing and cancellation.
type SessionStore interface {
	// SessionExists reports whether a live session exists for the key.
	// An expired session counts as absent.
	SessionExists(ctx context.Context, sessionKey string) (bool, error)
}

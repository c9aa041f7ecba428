package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrUnavailable wraps backend connectivity failures. It is an
	// infrastructure error and must never be mapped to a credential error.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// User is the durable identity record.
type User struct {
	ID                uint
	Email             string
	PasswordHash      string
	Name              string
	Role              string
	Active            bool
	TwoFactorEnabled  bool
	TOTPSecret        string
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// Token is one issued refresh-token record. The raw refresh token is never
// persisted; Fingerprint holds its HMAC and is unique across all rows.
type Token struct {
	ID          uint
	UserID      uint
	Fingerprint string
	JTI         string
	Revoked     bool
	ExpiresAt   time.Time
	IP          string
	UserAgent   string
	DeviceName  string
	CreatedAt   time.Time
}

// AuditEntry is an append-only security event row.
type AuditEntry struct {
	ID        uint
	UserID    *uint
	Event     string
	IP        string
	Meta      []byte
	CreatedAt time.Time
}

// LoginAttempt is an append-only credential-check record feeding the
// brute-force counter.
type LoginAttempt struct {
	ID        uint
	Email     string
	IP        string
	UserAgent string
	Success   bool
	UserID    *uint
	Reason    string
	CreatedAt time.Time
}

// PasswordHistory holds one past password hash for reuse rejection.
type PasswordHistory struct {
	ID        uint
	UserID    uint
	Hash      string
	CreatedAt time.Time
}

// Users is the identity persistence contract.
type Users interface {
	Create(ctx context.Context, user *User) error
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id uint) (*User, error)
	UpdatePassword(ctx context.Context, id uint, hash string, changedAt time.Time) error
	SetTwoFactor(ctx context.Context, id uint, enabled bool, secret string) error
}

// Tokens is the refresh-token persistence contract.
type Tokens interface {
	Create(ctx context.Context, token *Token) error
	ByFingerprint(ctx context.Context, fingerprint string) (*Token, error)
	ByID(ctx context.Context, id uint) (*Token, error)

	// Revoke flips the revoked flag atomically and reports whether this
	// call performed the transition. Under concurrent rotation only one
	// caller observes true; the implementation must use a conditional
	// single-row update (revoked=false predicate, affected-row count).
	Revoke(ctx context.Context, id uint) (bool, error)

	ActiveCount(ctx context.Context, userID uint, now time.Time) (int64, error)
	OldestActive(ctx context.Context, userID uint, now time.Time) (*Token, error)
	ActiveForUser(ctx context.Context, userID uint) ([]Token, error)
	ExpiredUnrevoked(ctx context.Context, now time.Time, limit int) ([]Token, error)
}

// Audit is the append-only audit log contract.
type Audit interface {
	Append(ctx context.Context, entry *AuditEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Attempts is the append-only login-attempt contract.
type Attempts interface {
	Append(ctx context.Context, attempt *LoginAttempt) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// History is the password-history contract. Recent returns the newest
// entries first.
type History interface {
	Append(ctx context.Context, entry *PasswordHistory) error
	Recent(ctx context.Context, userID uint, limit int) ([]PasswordHistory, error)
	TrimOldest(ctx context.Context, userID uint, keep int) error
}

// Store aggregates the durable collaborator interfaces the engine consumes.
type Store interface {
	Users() Users
	Tokens() Tokens
	Audit() Audit
	Attempts() Attempts
	History() History
}

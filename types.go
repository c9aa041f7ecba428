package authengine

import (
	"context"
	"time"
)

// ClientMeta carries per-request client attributes into the engine. All
// fields are optional; empty values are stored as-is.
type ClientMeta struct {
	IP         string
	UserAgent  string
	DeviceName string
}

// Profile is the non-sensitive projection of a user record returned by
// login and introspection paths.
type Profile struct {
	ID               uint   `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

// TokenPair is one issued access/refresh pair. RefreshToken is the raw
// opaque secret, returned to the caller exactly once and never persisted.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResult is the outcome of a credential check. When the user has
// two-factor enabled, TwoFactorRequired is true and Tokens is nil; the
// caller must complete the second factor before any token is issued.
type LoginResult struct {
	Profile           Profile
	Tokens            *TokenPair
	TwoFactorRequired bool
}

// SessionInfo describes one live session for introspection. Fields beyond
// ID are filled from the metadata cache when present and may be zero after
// a cache miss; ID and ordering come from the session index.
type SessionInfo struct {
	ID         uint      `json:"id"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// TwoFactorSetup is returned by SetupTwoFactor: the pending seed and an
// otpauth:// provisioning URL for authenticator apps.
type TwoFactorSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURL string `json:"provisioning_url"`
}

// PasswordViolation identifies the first policy rule a candidate password
// failed. The identifiers are stable and safe to surface to callers.
type PasswordViolation string

const (
	ViolationMinLength       PasswordViolation = "minimum length"
	ViolationUppercaseNeeded PasswordViolation = "uppercase missing"
	ViolationLowercaseNeeded PasswordViolation = "lowercase missing"
	ViolationNumberNeeded    PasswordViolation = "number missing"
	ViolationSymbolNeeded    PasswordViolation = "symbol missing"
)

// RegionResolver maps a client IP to a coarse region label for the
// suspicious-activity heuristic. Implementations should return ("", false)
// when the IP cannot be resolved; unresolved IPs are skipped, not treated
// as anomalous.
type RegionResolver interface {
	Region(ctx context.Context, ip string) (string, bool)
}

// RegionResolverFunc adapts a function to the RegionResolver interface.
type RegionResolverFunc func(ctx context.Context, ip string) (string, bool)

func (f RegionResolverFunc) Region(ctx context.Context, ip string) (string, bool) {
	return f(ctx, ip)
}

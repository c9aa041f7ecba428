package authengine

import (
	"errors"
	"time"

	"github.com/dmarquespt/authengine/jwt"
)

// Config is the engine's full configuration tree. Zero values are filled
// with defaults by the Builder; Validate rejects combinations that cannot
// produce a working engine.
type Config struct {
	JWT       JWTConfig
	Token     TokenConfig
	Session   SessionConfig
	Security  SecurityConfig
	Password  PasswordConfig
	TwoFactor TwoFactorConfig
	Reset     ResetConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Retention RetentionConfig
}

// JWTConfig configures access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// TokenConfig configures the refresh-token lifecycle.
type TokenConfig struct {
	// RefreshTTL is the refresh-token lifetime. Default 30 days.
	RefreshTTL time.Duration
	// Rotate revokes the presented refresh token before issuing a new
	// pair, making each raw token strictly one-time-use. Default true.
	Rotate bool
	// FingerprintKey is the HMAC key for refresh and reset token
	// fingerprints. Required, at least 32 bytes.
	FingerprintKey []byte
}

// SessionConfig bounds concurrent sessions per user.
type SessionConfig struct {
	// MaxPerUser caps live sessions per user; the oldest session is
	// evicted on login once the cap is reached. Zero disables the cap.
	MaxPerUser int
}

// SecurityConfig configures brute-force throttling and the geo-anomaly
// heuristic.
type SecurityConfig struct {
	BruteForceWindow    time.Duration
	BruteForceThreshold int64
	BlockDuration       time.Duration

	// SuspiciousRegionCheck enables the region heuristic. Off by default;
	// it needs a RegionResolver to do anything.
	SuspiciousRegionCheck     bool
	SuspiciousRegionThreshold int
	RegionWindow              time.Duration
}

// PasswordConfig configures the password policy and history retention.
type PasswordConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSymbol    bool
	// HistoryCount is how many past hashes are retained and checked for
	// reuse. Zero disables history.
	HistoryCount int
}

// TwoFactorConfig configures the TOTP lifecycle.
type TwoFactorConfig struct {
	Issuer string
	// Digits and Period follow the otpauth defaults (6 digits, 30s).
	Digits int
	Period uint
	// Skew is the number of adjacent periods accepted around now.
	Skew uint
	// SetupTTL bounds the window between setup and enable.
	SetupTTL time.Duration
	// SealKey encrypts the confirmed TOTP seed at rest. Required 32 bytes
	// when two-factor operations are used.
	SealKey []byte
}

// ResetConfig configures the password reset flow.
type ResetConfig struct {
	TokenTTL time.Duration
}

// AuditConfig configures the optional asynchronous sink dispatcher. The
// durable audit row is always written regardless of these settings.
type AuditConfig struct {
	BufferSize int
	// DropIfFull drops sink events instead of blocking when the buffer is
	// full. Dropped events are counted, never silent.
	DropIfFull bool
}

// MetricsConfig enables in-process counters. Collection is lock-free;
// disabled metrics cost a single branch per operation.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally buckets Validate latency.
	EnableLatencyHistograms bool
}

// RetentionConfig is consumed by the Sweeper, not by request paths.
type RetentionConfig struct {
	AuditRetention   time.Duration
	AttemptRetention time.Duration
	// SweepBatch bounds how many expired token rows one sweep pass
	// revokes.
	SweepBatch int
}

// DefaultConfig returns the configuration a fresh Builder starts from.
// Useful when only a few fields need overriding.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: string(jwt.MethodHS256),
		},
		Token: TokenConfig{
			RefreshTTL: 30 * 24 * time.Hour,
			Rotate:     true,
		},
		Session: SessionConfig{
			MaxPerUser: 5,
		},
		Security: SecurityConfig{
			BruteForceWindow:          900 * time.Second,
			BruteForceThreshold:       10,
			BlockDuration:             15 * time.Minute,
			SuspiciousRegionCheck:     false,
			SuspiciousRegionThreshold: 2,
			RegionWindow:              time.Hour,
		},
		Password: PasswordConfig{
			MinLength:        10,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumber:    true,
			RequireSymbol:    true,
			HistoryCount:     5,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:   "authengine",
			Digits:   6,
			Period:   30,
			Skew:     1,
			SetupTTL: 5 * time.Minute,
		},
		Reset: ResetConfig{
			TokenTTL: 15 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: false,
		},
		Retention: RetentionConfig{
			AuditRetention:   90 * 24 * time.Hour,
			AttemptRetention: 30 * 24 * time.Hour,
			SweepBatch:       500,
		},
	}
}

// Validate rejects configurations that cannot produce a working engine.
// JWT key material is validated separately by jwt.NewManager.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token.RefreshTTL must be positive")
	}
	if len(c.Token.FingerprintKey) < 32 {
		return errors.New("Token.FingerprintKey must be at least 32 bytes")
	}
	if c.Session.MaxPerUser < 0 {
		return errors.New("Session.MaxPerUser must not be negative")
	}
	if c.Security.BruteForceWindow <= 0 || c.Security.BlockDuration <= 0 {
		return errors.New("Security windows must be positive")
	}
	if c.Security.BruteForceThreshold <= 0 {
		return errors.New("Security.BruteForceThreshold must be positive")
	}
	if c.Security.SuspiciousRegionCheck {
		if c.Security.SuspiciousRegionThreshold < 2 {
			return errors.New("Security.SuspiciousRegionThreshold must be at least 2")
		}
		if c.Security.RegionWindow <= 0 {
			return errors.New("Security.RegionWindow must be positive")
		}
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password.MinLength must be at least 1")
	}
	if c.Password.HistoryCount < 0 {
		return errors.New("Password.HistoryCount must not be negative")
	}
	if c.TwoFactor.SetupTTL <= 0 {
		return errors.New("TwoFactor.SetupTTL must be positive")
	}
	if len(c.TwoFactor.SealKey) > 0 && len(c.TwoFactor.SealKey) != 32 {
		return errors.New("TwoFactor.SealKey must be exactly 32 bytes")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset.TokenTTL must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Token.FingerprintKey = cloneBytes(cfg.Token.FingerprintKey)
	out.TwoFactor.SealKey = cloneBytes(cfg.TwoFactor.SealKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

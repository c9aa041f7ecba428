package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis connectivity failures. Like the durable
// store's unavailability error, it is infrastructure, never a credential
// outcome.
var ErrRedisUnavailable = errors.New("redis unavailable")

const blacklistSentinel = "1"

// SessionMeta is the denormalized copy of a token row cached for fast
// introspection. Derived, never authoritative.
type SessionMeta struct {
	TokenID    uint
	UserID     uint
	JTI        string
	IP         string
	UserAgent  string
	DeviceName string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Store wraps a Redis client with the engine's key families.
type Store struct {
	redis redis.UniversalClient
}

// NewStore creates a fast [Store] backed by the given Redis client.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

func (s *Store) sessionsKey(userID uint) string {
	return "sessions:" + formatID(userID)
}

func (s *Store) sessionMetaKey(tokenID uint) string {
	return "session:token:" + formatID(tokenID)
}

func (s *Store) refreshBlacklistKey(fingerprint string) string {
	return "bl:refresh:" + fingerprint
}

func (s *Store) accessBlacklistKey(jti string) string {
	return "bl:access:" + jti
}

func (s *Store) loginFailKey(email string) string {
	return "login:fail:" + email
}

func (s *Store) blockedEmailKey(email string) string {
	return "blocked:email:" + email
}

func (s *Store) regionsKey(userID uint) string {
	return "active_regions:" + formatID(userID)
}

func (s *Store) twoFactorSetupKey(userID uint) string {
	return "2fa:setup:" + formatID(userID)
}

func (s *Store) resetTokenKey(fingerprint string) string {
	return "pwdreset:" + fingerprint
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// AddSession records a token id in the user's session index, scored by
// issuance time for oldest-first eviction and recency-ordered listing.
func (s *Store) AddSession(ctx context.Context, userID, tokenID uint, issuedAt time.Time) error {
	err := s.redis.ZAdd(ctx, s.sessionsKey(userID), redis.Z{
		Score:  float64(issuedAt.UnixMilli()),
		Member: formatID(tokenID),
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RemoveSession drops a token id from the user's session index.
func (s *Store) RemoveSession(ctx context.Context, userID, tokenID uint) error {
	if err := s.redis.ZRem(ctx, s.sessionsKey(userID), formatID(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SessionIDs returns the user's live token ids, most recent first. This is
// index-only and may briefly lead the durable store during a revoke.
func (s *Store) SessionIDs(ctx context.Context, userID uint) ([]uint, error) {
	members, err := s.redis.ZRevRange(ctx, s.sessionsKey(userID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ids := make([]uint, 0, len(members))
	for _, member := range members {
		id, parseErr := strconv.ParseUint(member, 10, 64)
		if parseErr != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// CacheSessionMeta stores the denormalized token copy with a TTL bounded
// by the refresh expiry, so stale metadata cannot outlive its session.
func (s *Store) CacheSessionMeta(ctx context.Context, meta SessionMeta) error {
	ttl := time.Until(meta.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	key := s.sessionMetaKey(meta.TokenID)
	fields := map[string]any{
		"id":          formatID(meta.TokenID),
		"user_id":     formatID(meta.UserID),
		"jti":         meta.JTI,
		"ip":          meta.IP,
		"user_agent":  meta.UserAgent,
		"device_name": meta.DeviceName,
		"created_at":  meta.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":  meta.ExpiresAt.UTC().Format(time.RFC3339),
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SessionMeta fetches the cached copy for a token id. Returns (nil, nil)
// on a cache miss.
func (s *Store) SessionMeta(ctx context.Context, tokenID uint) (*SessionMeta, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionMetaKey(tokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	meta := &SessionMeta{
		JTI:        fields["jti"],
		IP:         fields["ip"],
		UserAgent:  fields["user_agent"],
		DeviceName: fields["device_name"],
	}
	if id, parseErr := strconv.ParseUint(fields["id"], 10, 64); parseErr == nil {
		meta.TokenID = uint(id)
	}
	if id, parseErr := strconv.ParseUint(fields["user_id"], 10, 64); parseErr == nil {
		meta.UserID = uint(id)
	}
	if at, parseErr := time.Parse(time.RFC3339, fields["created_at"]); parseErr == nil {
		meta.CreatedAt = at
	}
	if at, parseErr := time.Parse(time.RFC3339, fields["expires_at"]); parseErr == nil {
		meta.ExpiresAt = at
	}
	return meta, nil
}

// DropSessionMeta deletes the cached copy.
func (s *Store) DropSessionMeta(ctx context.Context, tokenID uint) error {
	if err := s.redis.Del(ctx, s.sessionMetaKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// BlacklistRefresh rejects a refresh-token fingerprint for the remaining
// lifetime of its row. Non-positive TTLs are skipped; the durable check
// already rejects expired rows.
func (s *Store) BlacklistRefresh(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.refreshBlacklistKey(fingerprint), blacklistSentinel, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRefreshBlacklisted checks the refresh blacklist.
func (s *Store) IsRefreshBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	return s.exists(ctx, s.refreshBlacklistKey(fingerprint))
}

// BlacklistAccess rejects an access-token jti for the access-token
// lifetime.
func (s *Store) BlacklistAccess(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.accessBlacklistKey(jti), blacklistSentinel, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsAccessBlacklisted is the hot-path revocation check: one Redis EXISTS,
// no durable round trip.
func (s *Store) IsAccessBlacklisted(ctx context.Context, jti string) (bool, error) {
	return s.exists(ctx, s.accessBlacklistKey(jti))
}

// RecordLoginFailure increments the fixed-window failure counter for an
// email and returns the new count. The TTL is set only on the first hit in
// the window.
func (s *Store) RecordLoginFailure(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := s.loginFailKey(email)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

// ClearLoginFailures resets the failure counter after a successful
// credential check.
func (s *Store) ClearLoginFailures(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.loginFailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// BlockEmail sets the temporary block flag. The block TTL is independent
// of the counting window.
func (s *Store) BlockEmail(ctx context.Context, email string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.blockedEmailKey(email), blacklistSentinel, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsEmailBlocked checks the block flag.
func (s *Store) IsEmailBlocked(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, s.blockedEmailKey(email))
}

// TouchRegion adds a region to the user's sliding-window set, refreshes the
// window, and returns the distinct regions currently tracked.
func (s *Store) TouchRegion(ctx context.Context, userID uint, region string, window time.Duration) ([]string, error) {
	key := s.regionsKey(userID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, region)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	regions, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return regions, nil
}

// StorePendingTwoFactor saves a not-yet-confirmed TOTP secret. Re-invoking
// overwrites the previous pending secret.
func (s *Store) StorePendingTwoFactor(ctx context.Context, userID uint, secret string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.twoFactorSetupKey(userID), secret, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// PendingTwoFactor fetches the pending secret; ("", false, nil) when the
// setup window has expired.
func (s *Store) PendingTwoFactor(ctx context.Context, userID uint) (string, bool, error) {
	secret, err := s.redis.Get(ctx, s.twoFactorSetupKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return secret, true, nil
}

// DropPendingTwoFactor discards the pending secret after confirmation.
func (s *Store) DropPendingTwoFactor(ctx context.Context, userID uint) error {
	if err := s.redis.Del(ctx, s.twoFactorSetupKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// StoreResetToken maps a reset-token fingerprint to an email for the reset
// window. Durable across process restarts, unlike the in-memory map it
// replaces.
func (s *Store) StoreResetToken(ctx context.Context, fingerprint, email string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.resetTokenKey(fingerprint), email, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeResetToken atomically fetches and deletes the mapping, so a reset
// token is usable at most once.
func (s *Store) ConsumeResetToken(ctx context.Context, fingerprint string) (string, bool, error) {
	email, err := s.redis.GetDel(ctx, s.resetTokenKey(fingerprint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return email, true, nil
}

// Ping reports point-in-time Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

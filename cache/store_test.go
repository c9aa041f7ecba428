package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestSessionIndexOrderAndRemoval(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []uint{10, 11, 12} {
		if err := s.AddSession(ctx, 1, id, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("AddSession failed: %v", err)
		}
	}

	ids, err := s.SessionIDs(ctx, 1)
	if err != nil {
		t.Fatalf("SessionIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != 12 || ids[2] != 10 {
		t.Fatalf("expected most-recent-first [12 11 10], got %v", ids)
	}

	if err := s.RemoveSession(ctx, 1, 11); err != nil {
		t.Fatalf("RemoveSession failed: %v", err)
	}
	ids, err = s.SessionIDs(ctx, 1)
	if err != nil {
		t.Fatalf("SessionIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 12 || ids[1] != 10 {
		t.Fatalf("expected [12 10], got %v", ids)
	}
}

func TestSessionMetaRoundTripAndTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	meta := SessionMeta{
		TokenID:    7,
		UserID:     3,
		JTI:        "jti-7",
		IP:         "203.0.113.9",
		UserAgent:  "test-agent",
		DeviceName: "laptop",
		CreatedAt:  time.Now().Truncate(time.Second),
		ExpiresAt:  time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.CacheSessionMeta(ctx, meta); err != nil {
		t.Fatalf("CacheSessionMeta failed: %v", err)
	}

	got, err := s.SessionMeta(ctx, 7)
	if err != nil {
		t.Fatalf("SessionMeta failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached meta")
	}
	if got.TokenID != 7 || got.UserID != 3 || got.JTI != "jti-7" || got.DeviceName != "laptop" {
		t.Fatalf("unexpected meta: %+v", got)
	}

	mr.FastForward(2 * time.Hour)
	got, err = s.SessionMeta(ctx, 7)
	if err != nil {
		t.Fatalf("SessionMeta failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected meta to expire with the session")
	}
}

func TestCacheSessionMetaSkipsExpired(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.CacheSessionMeta(context.Background(), SessionMeta{
		TokenID:   9,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("CacheSessionMeta failed: %v", err)
	}
	got, err := s.SessionMeta(context.Background(), 9)
	if err != nil {
		t.Fatalf("SessionMeta failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected no cache write for an already-expired session")
	}
}

func TestBlacklists(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.BlacklistAccess(ctx, "jti-x", 15*time.Minute); err != nil {
		t.Fatalf("BlacklistAccess failed: %v", err)
	}
	revoked, err := s.IsAccessBlacklisted(ctx, "jti-x")
	if err != nil {
		t.Fatalf("IsAccessBlacklisted failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected blacklisted jti")
	}
	revoked, err = s.IsAccessBlacklisted(ctx, "jti-other")
	if err != nil {
		t.Fatalf("IsAccessBlacklisted failed: %v", err)
	}
	if revoked {
		t.Fatal("unrelated jti must not be blacklisted")
	}

	if err := s.BlacklistRefresh(ctx, "fp-x", time.Hour); err != nil {
		t.Fatalf("BlacklistRefresh failed: %v", err)
	}
	listed, err := s.IsRefreshBlacklisted(ctx, "fp-x")
	if err != nil {
		t.Fatalf("IsRefreshBlacklisted failed: %v", err)
	}
	if !listed {
		t.Fatal("expected blacklisted fingerprint")
	}

	// Non-positive TTL writes are skipped, not errors.
	if err := s.BlacklistRefresh(ctx, "fp-expired", -time.Second); err != nil {
		t.Fatalf("BlacklistRefresh failed: %v", err)
	}
	listed, err = s.IsRefreshBlacklisted(ctx, "fp-expired")
	if err != nil {
		t.Fatalf("IsRefreshBlacklisted failed: %v", err)
	}
	if listed {
		t.Fatal("expired fingerprint must not be written")
	}

	mr.FastForward(16 * time.Minute)
	revoked, err = s.IsAccessBlacklisted(ctx, "jti-x")
	if err != nil {
		t.Fatalf("IsAccessBlacklisted failed: %v", err)
	}
	if revoked {
		t.Fatal("access blacklist entry must expire with the token lifetime")
	}
}

func TestLoginFailureWindow(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := s.RecordLoginFailure(ctx, "a@example.com", 15*time.Minute)
		if err != nil {
			t.Fatalf("RecordLoginFailure failed: %v", err)
		}
		if count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	if err := s.ClearLoginFailures(ctx, "a@example.com"); err != nil {
		t.Fatalf("ClearLoginFailures failed: %v", err)
	}
	count, err := s.RecordLoginFailure(ctx, "a@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("RecordLoginFailure failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter reset, got %d", count)
	}

	mr.FastForward(16 * time.Minute)
	count, err = s.RecordLoginFailure(ctx, "a@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("RecordLoginFailure failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh window after TTL, got %d", count)
	}
}

func TestEmailBlockLifts(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.BlockEmail(ctx, "a@example.com", 15*time.Minute); err != nil {
		t.Fatalf("BlockEmail failed: %v", err)
	}
	blocked, err := s.IsEmailBlocked(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("IsEmailBlocked failed: %v", err)
	}
	if !blocked {
		t.Fatal("expected blocked email")
	}

	mr.FastForward(15*time.Minute + time.Second)
	blocked, err = s.IsEmailBlocked(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("IsEmailBlocked failed: %v", err)
	}
	if blocked {
		t.Fatal("expected block to lift after TTL")
	}
}

func TestTouchRegionAccumulatesWithinWindow(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	regions, err := s.TouchRegion(ctx, 5, "BR", time.Hour)
	if err != nil {
		t.Fatalf("TouchRegion failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %v", regions)
	}

	regions, err = s.TouchRegion(ctx, 5, "DE", time.Hour)
	if err != nil {
		t.Fatalf("TouchRegion failed: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %v", regions)
	}

	mr.FastForward(2 * time.Hour)
	regions, err = s.TouchRegion(ctx, 5, "BR", time.Hour)
	if err != nil {
		t.Fatalf("TouchRegion failed: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("expected window reset, got %v", regions)
	}
}

func TestPendingTwoFactorLifecycle(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.StorePendingTwoFactor(ctx, 2, "SECRET-A", 5*time.Minute); err != nil {
		t.Fatalf("StorePendingTwoFactor failed: %v", err)
	}
	// Re-invoking setup overwrites the previous pending secret.
	if err := s.StorePendingTwoFactor(ctx, 2, "SECRET-B", 5*time.Minute); err != nil {
		t.Fatalf("StorePendingTwoFactor failed: %v", err)
	}

	secret, ok, err := s.PendingTwoFactor(ctx, 2)
	if err != nil {
		t.Fatalf("PendingTwoFactor failed: %v", err)
	}
	if !ok || secret != "SECRET-B" {
		t.Fatalf("expected overwritten secret, got %q ok=%v", secret, ok)
	}

	if err := s.DropPendingTwoFactor(ctx, 2); err != nil {
		t.Fatalf("DropPendingTwoFactor failed: %v", err)
	}
	_, ok, err = s.PendingTwoFactor(ctx, 2)
	if err != nil {
		t.Fatalf("PendingTwoFactor failed: %v", err)
	}
	if ok {
		t.Fatal("expected pending secret to be gone")
	}

	if err := s.StorePendingTwoFactor(ctx, 3, "SECRET-C", 5*time.Minute); err != nil {
		t.Fatalf("StorePendingTwoFactor failed: %v", err)
	}
	mr.FastForward(6 * time.Minute)
	_, ok, err = s.PendingTwoFactor(ctx, 3)
	if err != nil {
		t.Fatalf("PendingTwoFactor failed: %v", err)
	}
	if ok {
		t.Fatal("expected pending secret to expire")
	}
}

func TestResetTokenConsumedOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.StoreResetToken(ctx, "fp-reset", "a@example.com", 15*time.Minute); err != nil {
		t.Fatalf("StoreResetToken failed: %v", err)
	}

	email, ok, err := s.ConsumeResetToken(ctx, "fp-reset")
	if err != nil {
		t.Fatalf("ConsumeResetToken failed: %v", err)
	}
	if !ok || email != "a@example.com" {
		t.Fatalf("expected mapping, got %q ok=%v", email, ok)
	}

	_, ok, err = s.ConsumeResetToken(ctx, "fp-reset")
	if err != nil {
		t.Fatalf("ConsumeResetToken failed: %v", err)
	}
	if ok {
		t.Fatal("reset token must be single-use")
	}
}

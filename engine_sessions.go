package authengine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dmarquespt/authengine/cache"
	"github.com/dmarquespt/authengine/internal"
	"github.com/dmarquespt/authengine/store"
)

// issueTokenPair mints a fresh access/refresh pair and persists the
// session: one durable token row, one session-index add, one metadata
// cache write. Any persistence failure aborts the whole operation; a row
// created before a failed index write is revoked again best-effort so no
// partial session survives.
func (e *Engine) issueTokenPair(ctx context.Context, user *store.User, meta ClientMeta) (*TokenPair, *store.Token, error) {
	rawRefresh, err := internal.NewRefreshToken()
	if err != nil {
		return nil, nil, err
	}
	jti := uuid.NewString()

	accessToken, accessExp, err := e.jwtManager.CreateAccess(user.ID, user.Email, user.Role, jti)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	row := &store.Token{
		UserID:      user.ID,
		Fingerprint: internal.Fingerprint(e.config.Token.FingerprintKey, rawRefresh),
		JTI:         jti,
		ExpiresAt:   now.Add(e.config.Token.RefreshTTL),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		DeviceName:  meta.DeviceName,
	}
	if err := e.durable.Tokens().Create(ctx, row); err != nil {
		return nil, nil, err
	}

	if err := e.fast.AddSession(ctx, user.ID, row.ID, now); err != nil {
		e.discardPartialSession(ctx, row)
		return nil, nil, err
	}
	if err := e.fast.CacheSessionMeta(ctx, cache.SessionMeta{
		TokenID:    row.ID,
		UserID:     user.ID,
		JTI:        jti,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		DeviceName: meta.DeviceName,
		CreatedAt:  now,
		ExpiresAt:  row.ExpiresAt,
	}); err != nil {
		e.discardPartialSession(ctx, row)
		return nil, nil, err
	}

	e.metrics.inc(MetricSessionCreated)
	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     rawRefresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: row.ExpiresAt,
	}, row, nil
}

func (e *Engine) discardPartialSession(ctx context.Context, row *store.Token) {
	ctx = context.WithoutCancel(ctx)
	if _, err := e.durable.Tokens().Revoke(ctx, row.ID); err != nil {
		log.Printf("authengine: discarding partial session %d failed: %v", row.ID, err)
	}
	if err := e.fast.RemoveSession(ctx, row.UserID, row.ID); err != nil {
		log.Printf("authengine: session index cleanup for %d failed: %v", row.ID, err)
	}
}

// Refresh exchanges a raw refresh token for a new pair. With rotation
// enabled (the default) the presented token is revoked first, so each raw
// token is strictly one-time-use; the second of two concurrent rotations
// on the same token loses the conditional durable update and fails. The
// audit trail distinguishes invalid, expired, and reused tokens, the
// caller-visible error never does.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	meta := metaFromContext(ctx, ClientMeta{})
	fingerprint := internal.Fingerprint(e.config.Token.FingerprintKey, rawRefresh)

	blacklisted, err := e.fast.IsRefreshBlacklisted(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		e.metrics.inc(MetricRefreshReuse)
		e.metrics.inc(MetricRefreshFailure)
		e.recordAudit(ctx, nil, meta.IP, RefreshMeta{Reason: "reused"})
		return nil, ErrRefreshInvalid
	}

	row, err := e.durable.Tokens().ByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metrics.inc(MetricRefreshFailure)
			e.recordAudit(ctx, nil, meta.IP, RefreshMeta{Reason: "invalid_token"})
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if row.Revoked {
		e.metrics.inc(MetricRefreshReuse)
		e.metrics.inc(MetricRefreshFailure)
		e.recordAudit(ctx, &row.UserID, meta.IP, RefreshMeta{TokenID: row.ID, Reason: "reused"})
		return nil, ErrRefreshInvalid
	}
	if time.Now().After(row.ExpiresAt) {
		e.metrics.inc(MetricRefreshFailure)
		e.recordAudit(ctx, &row.UserID, meta.IP, RefreshMeta{TokenID: row.ID, Reason: "expired"})
		return nil, ErrRefreshInvalid
	}

	if e.config.Token.Rotate {
		did, err := e.revokeTokenRecord(ctx, row, meta.IP, AuditRevoke, "rotation")
		if err != nil {
			return nil, err
		}
		if !did {
			// A concurrent rotation won the conditional update.
			e.metrics.inc(MetricRefreshReuse)
			e.metrics.inc(MetricRefreshFailure)
			e.recordAudit(ctx, &row.UserID, meta.IP, RefreshMeta{TokenID: row.ID, Reason: "reused"})
			return nil, ErrRefreshInvalid
		}
	}

	user, err := e.durable.Users().ByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrRefreshInvalid
	}

	if meta.DeviceName == "" {
		meta.DeviceName = row.DeviceName
	}

	pair, newRow, err := e.issueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	e.metrics.inc(MetricRefreshSuccess)
	e.recordAudit(ctx, &user.ID, meta.IP, RefreshMeta{TokenID: newRow.ID})
	return pair, nil
}

// Logout revokes the session identified by a raw refresh token.
func (e *Engine) Logout(ctx context.Context, rawRefresh string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	meta := metaFromContext(ctx, ClientMeta{})
	fingerprint := internal.Fingerprint(e.config.Token.FingerprintKey, rawRefresh)

	row, err := e.durable.Tokens().ByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRefreshInvalid
		}
		return err
	}

	did, err := e.revokeTokenRecord(ctx, row, meta.IP, AuditLogout, "logout")
	if did {
		e.metrics.inc(MetricLogout)
	}
	return err
}

// LogoutAll revokes every live session of a user and appends a single
// LOGOUT_ALL summary event on top of the per-session revoke records.
func (e *Engine) LogoutAll(ctx context.Context, userID uint) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return e.revokeAllSessions(ctx, userID, "logout_all")
}

func (e *Engine) revokeAllSessions(ctx context.Context, userID uint, reason string) error {
	meta := metaFromContext(ctx, ClientMeta{})

	rows, err := e.durable.Tokens().ActiveForUser(ctx, userID)
	if err != nil {
		return err
	}

	revoked := 0
	for i := range rows {
		did, err := e.revokeTokenRecord(ctx, &rows[i], meta.IP, AuditRevoke, reason)
		if err != nil {
			return err
		}
		if did {
			revoked++
		}
	}

	e.metrics.inc(MetricLogoutAll)
	e.recordAudit(ctx, &userID, meta.IP, LogoutAllMeta{Sessions: revoked, Reason: reason})
	return nil
}

// RevokeSession revokes one session by id on behalf of its owner. A
// caller that does not own the session gets ErrNotSessionOwner.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID uint) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	meta := metaFromContext(ctx, ClientMeta{})

	row, err := e.durable.Tokens().ByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if row.UserID != userID {
		return ErrNotSessionOwner
	}

	_, err = e.revokeTokenRecord(ctx, row, meta.IP, AuditRevoke, "revoked_by_owner")
	return err
}

// ListSessions returns the user's live sessions, most recent first. The
// ordering comes from the session index; per-session details come from
// the metadata cache and may be absent after a cache miss.
func (e *Engine) ListSessions(ctx context.Context, userID uint) ([]SessionInfo, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	ids, err := e.fast.SessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		info := SessionInfo{ID: id}
		if meta, err := e.fast.SessionMeta(ctx, id); err == nil && meta != nil {
			info.IP = meta.IP
			info.UserAgent = meta.UserAgent
			info.DeviceName = meta.DeviceName
			info.CreatedAt = meta.CreatedAt
			info.ExpiresAt = meta.ExpiresAt
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}

// enforceSessionLimit evicts the oldest live session once the per-user cap
// is reached, so at most MaxPerUser sessions remain after the new login
// completes. The check is advisory under concurrency; simultaneous logins
// can transiently exceed the cap and self-correct on the next login.
func (e *Engine) enforceSessionLimit(ctx context.Context, userID uint) error {
	max := e.config.Session.MaxPerUser
	if max <= 0 {
		return nil
	}

	now := time.Now()
	count, err := e.durable.Tokens().ActiveCount(ctx, userID, now)
	if err != nil {
		return err
	}
	if count < int64(max) {
		return nil
	}

	oldest, err := e.durable.Tokens().OldestActive(ctx, userID, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	meta := metaFromContext(ctx, ClientMeta{})
	did, err := e.revokeTokenRecord(ctx, oldest, meta.IP, AuditRevoke, "session_limit")
	if did {
		e.metrics.inc(MetricSessionEvicted)
	}
	return err
}

// RevokeExpired revokes up to limit token rows past their expiry. The
// Sweeper calls this periodically; each revoked row gets the usual
// blacklist and index cleanup so late cache entries cannot linger.
func (e *Engine) RevokeExpired(ctx context.Context, limit int) (int, error) {
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}

	rows, err := e.durable.Tokens().ExpiredUnrevoked(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for i := range rows {
		did, err := e.revokeTokenRecord(ctx, &rows[i], "", AuditRevoke, "expired")
		if err != nil {
			return revoked, err
		}
		if did {
			revoked++
		}
	}
	return revoked, nil
}

// revokeTokenRecord is the single multi-step invalidation path: durable
// revoked flag first, then refresh and access blacklists, session index
// removal, metadata cache delete, audit. The durable update is the
// correctness gate; when it reports no transition the row was already
// revoked and the remaining steps are skipped, making the operation
// idempotent. Fast-store steps are best-effort and run on a
// cancellation-free context so an abandoned request cannot leave a
// session half revoked; a crash between steps leaves a revoked row that
// the durable check still rejects.
func (e *Engine) revokeTokenRecord(ctx context.Context, row *store.Token, ip string, kind AuditKind, reason string) (bool, error) {
	did, err := e.durable.Tokens().Revoke(ctx, row.ID)
	if err != nil {
		return false, err
	}
	if !did {
		return false, nil
	}

	ctx = context.WithoutCancel(ctx)

	if err := e.fast.BlacklistRefresh(ctx, row.Fingerprint, time.Until(row.ExpiresAt)); err != nil {
		log.Printf("authengine: refresh blacklist write for token %d failed: %v", row.ID, err)
	}
	if err := e.fast.BlacklistAccess(ctx, row.JTI, e.config.JWT.AccessTTL); err != nil {
		log.Printf("authengine: access blacklist write for token %d failed: %v", row.ID, err)
	}
	if err := e.fast.RemoveSession(ctx, row.UserID, row.ID); err != nil {
		log.Printf("authengine: session index removal for token %d failed: %v", row.ID, err)
	}
	if err := e.fast.DropSessionMeta(ctx, row.ID); err != nil {
		log.Printf("authengine: session meta delete for token %d failed: %v", row.ID, err)
	}

	e.metrics.inc(MetricSessionRevoked)
	e.recordAudit(ctx, &row.UserID, ip, RevokeMeta{
		Kind:    kind,
		TokenID: row.ID,
		JTI:     row.JTI,
		Reason:  reason,
	})
	return true, nil
}

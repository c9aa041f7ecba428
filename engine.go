package authengine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dmarquespt/authengine/cache"
	"github.com/dmarquespt/authengine/jwt"
	"github.com/dmarquespt/authengine/password"
	"github.com/dmarquespt/authengine/store"
)

// Engine coordinates the durable store and the fast store into the
// session/token lifecycle. It is stateless per request and safe for
// concurrent use; build one with [New] and share it.
type Engine struct {
	config     Config
	durable    store.Store
	fast       *cache.Store
	hasher     password.Hasher
	jwtManager *jwt.Manager
	regions    RegionResolver
	audit      *auditDispatcher
	metrics    *Metrics
	closed     atomic.Bool
}

// Close flushes the audit sink dispatcher. The stores are owned by the
// caller and are not closed here.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports sink events discarded because the dispatch buffer
// was full. Durable audit rows are never dropped.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Login runs the full credential flow: block check, hash compare,
// suspicious-activity check, attempt recording, session-limit enforcement,
// token issuance. When the user has two-factor enabled no tokens are
// issued; the result carries TwoFactorRequired and the caller completes
// the login with [Engine.LoginWithTwoFactor].
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	meta := metaFromContext(ctx, ClientMeta{})

	user, err := e.authenticate(ctx, email, plainPassword, meta)
	if err != nil {
		return nil, err
	}

	profile := profileOf(user)
	if user.TwoFactorEnabled {
		e.metrics.inc(MetricTwoFactorRequired)
		return &LoginResult{Profile: profile, TwoFactorRequired: true}, nil
	}

	pair, err := e.startSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Profile: profile, Tokens: pair}, nil
}

// LoginWithTwoFactor is the two-step login for users with a confirmed
// TOTP seed: credentials first, then the code, then tokens.
func (e *Engine) LoginWithTwoFactor(ctx context.Context, email, plainPassword, code string) (*LoginResult, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	meta := metaFromContext(ctx, ClientMeta{})

	user, err := e.authenticate(ctx, email, plainPassword, meta)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, err := e.verifyTOTP(user, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metrics.inc(MetricTwoFactorFailure)
		return nil, ErrTwoFactorCodeInvalid
	}
	e.metrics.inc(MetricTwoFactorSuccess)

	pair, err := e.startSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Profile: profileOf(user), Tokens: pair}, nil
}

// authenticate runs the gate half of the login state machine and returns
// the resolved user. Every outcome records exactly one login attempt.
func (e *Engine) authenticate(ctx context.Context, email, plainPassword string, meta ClientMeta) (*store.User, error) {
	blocked, err := e.fast.IsEmailBlocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if blocked {
		if err := e.RecordLoginAttempt(ctx, Attempt{
			Email:     email,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Reason:    attemptReasonBlocked,
		}); err != nil {
			return nil, err
		}
		e.metrics.inc(MetricLoginBlocked)
		return nil, ErrEmailBlocked
	}

	user, err := e.durable.Users().ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if recErr := e.RecordLoginAttempt(ctx, Attempt{
				Email:     email,
				IP:        meta.IP,
				UserAgent: meta.UserAgent,
				Reason:    "unknown_email",
			}); recErr != nil {
				return nil, recErr
			}
			e.metrics.inc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active {
		if err := e.RecordLoginAttempt(ctx, Attempt{
			Email:     email,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			UserID:    &user.ID,
			Reason:    "inactive",
		}); err != nil {
			return nil, err
		}
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	match, err := e.hasher.Verify(plainPassword, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		if err := e.RecordLoginAttempt(ctx, Attempt{
			Email:     email,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			UserID:    &user.ID,
			Reason:    "bad_password",
		}); err != nil {
			return nil, err
		}
		e.metrics.inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	// Credentials were valid, so the attempt counts as a success even if
	// the region heuristic rejects it below.
	if err := e.RecordLoginAttempt(ctx, Attempt{
		Email:     email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		UserID:    &user.ID,
		Success:   true,
	}); err != nil {
		return nil, err
	}

	if meta.IP != "" {
		if err := e.checkSuspiciousActivity(ctx, user, meta.IP); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// startSession is the issue half of the login state machine.
func (e *Engine) startSession(ctx context.Context, user *store.User, meta ClientMeta) (*TokenPair, error) {
	if err := e.enforceSessionLimit(ctx, user.ID); err != nil {
		return nil, err
	}

	pair, _, err := e.issueTokenPair(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricLoginSuccess)
	e.recordAudit(ctx, &user.ID, meta.IP, LoginMeta{Email: user.Email})
	return pair, nil
}

// Validate parses an access token and checks the revocation blacklist.
// This is the per-request authorization path; the blacklist check is a
// single fast-store existence lookup.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*jwt.AccessClaims, error) {
	start := time.Now()
	defer func() { e.metrics.observe(MetricValidateLatency, time.Since(start)) }()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrTokenRejected
	}

	revoked, err := e.fast.IsAccessBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRejected
	}
	return claims, nil
}

// IsAccessRevoked reports whether an access token's jti has been
// blacklisted by any revoke path. O(1), fast store only.
func (e *Engine) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	return e.fast.IsAccessBlacklisted(ctx, jti)
}

func profileOf(user *store.User) Profile {
	return Profile{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             user.Role,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

package authengine

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/dmarquespt/authengine/internal"
	"github.com/dmarquespt/authengine/store"
)

// ValidatePassword checks the candidate against the configured policy and
// returns the first violated rule, or nil when every enabled rule passes.
// Rules are checked in a fixed order, so a single violation does not mean
// the rest of the password is fine.
func (e *Engine) ValidatePassword(candidate string) *PasswordViolation {
	return validatePolicy(e.config.Password, candidate)
}

func validatePolicy(cfg PasswordConfig, candidate string) *PasswordViolation {
	violation := func(v PasswordViolation) *PasswordViolation { return &v }

	if len(candidate) < cfg.MinLength {
		return violation(ViolationMinLength)
	}

	var upper, lower, digit, symbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	if cfg.RequireUppercase && !upper {
		return violation(ViolationUppercaseNeeded)
	}
	if cfg.RequireLowercase && !lower {
		return violation(ViolationLowercaseNeeded)
	}
	if cfg.RequireNumber && !digit {
		return violation(ViolationNumberNeeded)
	}
	if cfg.RequireSymbol && !symbol {
		return violation(ViolationSymbolNeeded)
	}
	return nil
}

// UpdatePassword rotates a user's password: policy check, reuse check
// against the retained history, hash, durable update, history append and
// trim.
func (e *Engine) UpdatePassword(ctx context.Context, userID uint, newPassword string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	user, err := e.durable.Users().ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := e.changePassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metrics.inc(MetricPasswordChange)
	meta := metaFromContext(ctx, ClientMeta{})
	e.recordAudit(ctx, &user.ID, meta.IP, PasswordMeta{Via: "change"})
	return nil
}

func (e *Engine) changePassword(ctx context.Context, user *store.User, newPassword string) error {
	if v := e.ValidatePassword(newPassword); v != nil {
		return fmt.Errorf("%w: %s", ErrPasswordPolicy, *v)
	}

	if e.config.Password.HistoryCount > 0 {
		past, err := e.durable.History().Recent(ctx, user.ID, e.config.Password.HistoryCount)
		if err != nil {
			return err
		}
		for _, entry := range past {
			match, err := e.hasher.Verify(newPassword, entry.Hash)
			if err != nil {
				return err
			}
			if match {
				e.metrics.inc(MetricPasswordReuseRejected)
				return ErrPasswordReused
			}
		}
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := e.durable.Users().UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &now

	if e.config.Password.HistoryCount > 0 {
		if err := e.durable.History().Append(ctx, &store.PasswordHistory{UserID: user.ID, Hash: hash}); err != nil {
			return err
		}
		if err := e.durable.History().TrimOldest(ctx, user.ID, e.config.Password.HistoryCount); err != nil {
			return err
		}
	}
	return nil
}

// RequestPasswordReset issues a single-use reset token for the account and
// returns its raw value for out-of-band delivery. Only the token's
// fingerprint is stored, mapped to the email with a bounded TTL. Callers
// that must not leak account existence should swallow ErrUserNotFound.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e.closed.Load() {
		return "", ErrEngineClosed
	}

	if _, err := e.durable.Users().ByEmail(ctx, email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	rawToken, err := internal.NewResetToken()
	if err != nil {
		return "", err
	}
	fingerprint := internal.Fingerprint(e.config.Token.FingerprintKey, rawToken)

	if err := e.fast.StoreResetToken(ctx, fingerprint, email, e.config.Reset.TokenTTL); err != nil {
		return "", err
	}
	e.metrics.inc(MetricResetRequest)
	return rawToken, nil
}

// ResetPassword consumes a reset token and sets the new password. The
// token is single-use even on policy failure, and every live session of
// the account is revoked afterwards.
func (e *Engine) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	fingerprint := internal.Fingerprint(e.config.Token.FingerprintKey, rawToken)
	email, ok, err := e.fast.ConsumeResetToken(ctx, fingerprint)
	if err != nil {
		return err
	}
	if !ok {
		e.metrics.inc(MetricResetFailure)
		return ErrResetTokenInvalid
	}

	user, err := e.durable.Users().ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metrics.inc(MetricResetFailure)
			return ErrResetTokenInvalid
		}
		return err
	}

	if err := e.changePassword(ctx, user, newPassword); err != nil {
		return err
	}

	if err := e.revokeAllSessions(ctx, user.ID, "password_reset"); err != nil {
		return err
	}

	e.metrics.inc(MetricResetSuccess)
	meta := metaFromContext(ctx, ClientMeta{})
	e.recordAudit(ctx, &user.ID, meta.IP, PasswordMeta{Via: "reset"})
	return nil
}

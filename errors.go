package authengine

import (
	"errors"
	"fmt"
)

// Root sentinels of the error taxonomy. Every domain error returned by the
// engine wraps exactly one of these, so callers can classify with a single
// errors.Is check. Store connectivity failures are NOT part of this
// taxonomy; they propagate as cache.ErrRedisUnavailable or
// store.ErrUnavailable and must never be shown to a caller as a credential
// outcome.
var (
	// ErrUnauthorized covers bad credentials and invalid, expired, or
	// revoked tokens. Always safe to show generically to end users.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden covers rejections where the caller's identity was
	// otherwise accepted: ownership mismatch, temporary block, suspicious
	// activity.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest covers caller-correctable input problems.
	ErrBadRequest = errors.New("bad request")
)

var (
	// ErrInvalidCredentials is returned when the email/password pair does
	// not resolve to an active user.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	// ErrRefreshInvalid is the uniform error for every refresh rejection.
	// The audit trail distinguishes invalid, expired, and reused tokens;
	// the caller never does.
	ErrRefreshInvalid = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	// ErrTwoFactorCodeInvalid is returned when a TOTP code fails
	// verification.
	ErrTwoFactorCodeInvalid = fmt.Errorf("%w: invalid two-factor code", ErrUnauthorized)
	// ErrResetTokenInvalid is returned for an unknown, expired, or
	// already-consumed password reset token.
	ErrResetTokenInvalid = fmt.Errorf("%w: invalid reset token", ErrUnauthorized)
	// ErrTokenRejected is returned by Validate for an access token that
	// fails parsing, signature checks, or the revocation blacklist.
	ErrTokenRejected = fmt.Errorf("%w: invalid access token", ErrUnauthorized)

	// ErrEmailBlocked is returned while the brute-force block flag is set
	// for an email.
	ErrEmailBlocked = fmt.Errorf("%w: account temporarily blocked", ErrForbidden)
	// ErrSuspiciousActivity is returned when the region heuristic trips.
	ErrSuspiciousActivity = fmt.Errorf("%w: suspicious activity detected", ErrForbidden)
	// ErrNotSessionOwner is returned when a caller tries to revoke a
	// session belonging to a different user.
	ErrNotSessionOwner = fmt.Errorf("%w: session owned by another user", ErrForbidden)

	// ErrPasswordPolicy is returned with a violation reason when a
	// candidate password fails the configured policy.
	ErrPasswordPolicy = fmt.Errorf("%w: password policy violation", ErrBadRequest)
	// ErrPasswordReused is returned when a new password matches one of the
	// retained history hashes.
	ErrPasswordReused = fmt.Errorf("%w: password was used recently", ErrBadRequest)
	// ErrTwoFactorSetupExpired is returned when enable is called with no
	// pending setup secret.
	ErrTwoFactorSetupExpired = fmt.Errorf("%w: two-factor setup expired", ErrBadRequest)
	// ErrTwoFactorNotEnabled is returned by verify/disable when the user
	// has no confirmed two-factor seed.
	ErrTwoFactorNotEnabled = fmt.Errorf("%w: two-factor not enabled", ErrBadRequest)
	// ErrTwoFactorAlreadyEnabled is returned by setup when two-factor is
	// already confirmed for the user.
	ErrTwoFactorAlreadyEnabled = fmt.Errorf("%w: two-factor already enabled", ErrBadRequest)
	// ErrEmailTaken is returned by registration for a duplicate email.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrBadRequest)

	// ErrUserNotFound is returned by lookups that resolve no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when a session id resolves no token
	// row.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)

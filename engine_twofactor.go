package authengine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/dmarquespt/authengine/internal"
	"github.com/dmarquespt/authengine/store"
)

// Per-user two-factor state machine: disabled, setup pending, enabled.
// The pending seed lives only in the fast store with a short TTL and is
// promoted to durable, encrypted storage by a successful Enable.

// SetupTwoFactor generates a fresh TOTP seed, stores it as the pending
// setup secret, and returns it with an otpauth provisioning URL. Calling
// it again before confirmation overwrites the pending secret.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID uint) (*TwoFactorSetup, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.TwoFactor.Issuer,
		AccountName: user.Email,
		Period:      e.config.TwoFactor.Period,
		Digits:      otp.Digits(e.config.TwoFactor.Digits),
	})
	if err != nil {
		return nil, err
	}

	if err := e.fast.StorePendingTwoFactor(ctx, userID, key.Secret(), e.config.TwoFactor.SetupTTL); err != nil {
		return nil, err
	}

	return &TwoFactorSetup{
		Secret:          key.Secret(),
		ProvisioningURL: key.URL(),
	}, nil
}

// EnableTwoFactor confirms a pending setup: the code must verify against
// the pending seed, which is then encrypted and persisted with the
// enabled flag. A wrong code leaves the pending state untouched so the
// caller can retry within the setup TTL.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID uint, code string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(e.config.TwoFactor.SealKey) == 0 {
		return errors.New("two-factor seal key not configured")
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}

	secret, ok, err := e.fast.PendingTwoFactor(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTwoFactorSetupExpired
	}

	if !e.validateCode(code, secret) {
		return ErrTwoFactorCodeInvalid
	}

	sealed, err := internal.SealSecret(e.config.TwoFactor.SealKey, secret)
	if err != nil {
		return err
	}
	if err := e.durable.Users().SetTwoFactor(ctx, userID, true, sealed); err != nil {
		return err
	}

	if err := e.fast.DropPendingTwoFactor(ctx, userID); err != nil {
		// The pending key expires on its own; the confirmed state is
		// already durable.
		log.Printf("authengine: pending two-factor cleanup for user %d failed: %v", userID, err)
	}

	meta := metaFromContext(ctx, ClientMeta{})
	e.recordAudit(ctx, &userID, meta.IP, TwoFactorMeta{Enabled: true})
	return nil
}

// VerifyTwoFactor checks a code against the user's confirmed seed. It
// returns a boolean rather than an error for a wrong code; login's
// two-factor branch treats false as its own rejection.
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID uint, code string) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return e.verifyTOTP(user, code)
}

// DisableTwoFactor clears the enabled flag and the stored seed. It
// requires a currently valid code, so a stolen session alone cannot strip
// the second factor.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID uint, code string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.verifyTOTP(user, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTwoFactorCodeInvalid
	}

	if err := e.durable.Users().SetTwoFactor(ctx, userID, false, ""); err != nil {
		return err
	}

	meta := metaFromContext(ctx, ClientMeta{})
	e.recordAudit(ctx, &userID, meta.IP, TwoFactorMeta{Enabled: false})
	return nil
}

func (e *Engine) verifyTOTP(user *store.User, code string) (bool, error) {
	if !user.TwoFactorEnabled || user.TOTPSecret == "" {
		return false, ErrTwoFactorNotEnabled
	}
	if len(e.config.TwoFactor.SealKey) == 0 {
		return false, errors.New("two-factor seal key not configured")
	}

	secret, err := internal.OpenSecret(e.config.TwoFactor.SealKey, user.TOTPSecret)
	if err != nil {
		return false, err
	}
	return e.validateCode(code, secret), nil
}

func (e *Engine) validateCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    e.config.TwoFactor.Period,
		Skew:      e.config.TwoFactor.Skew,
		Digits:    otp.Digits(e.config.TwoFactor.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (e *Engine) userByID(ctx context.Context, userID uint) (*store.User, error) {
	user, err := e.durable.Users().ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

package authengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmarquespt/authengine/store"
)

// RegisterInput is the registration payload. Role defaults to "user".
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Register creates a new active account with a policy-validated password
// and seeds the password history so the initial password counts against
// reuse checks.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrBadRequest)
	}
	if v := e.ValidatePassword(in.Password); v != nil {
		return nil, fmt.Errorf("%w: %s", ErrPasswordPolicy, *v)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = "user"
	}

	user := &store.User{
		Email:        email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
		Active:       true,
	}
	if err := e.durable.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			e.metrics.inc(MetricRegisterDuplicate)
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if e.config.Password.HistoryCount > 0 {
		if err := e.durable.History().Append(ctx, &store.PasswordHistory{UserID: user.ID, Hash: hash}); err != nil {
			return nil, err
		}
	}

	e.metrics.inc(MetricRegisterSuccess)
	meta := metaFromContext(ctx, ClientMeta{})
	e.recordAudit(ctx, &user.ID, meta.IP, RegisterMeta{Email: email})

	profile := profileOf(user)
	return &profile, nil
}

// GetProfile returns the non-sensitive projection of a user.
func (e *Engine) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := profileOf(user)
	return &profile, nil
}

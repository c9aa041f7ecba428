package authengine

import (
	"context"
	"errors"
	"testing"
)

// TestFullSessionLifecycle walks the whole protocol: register, login,
// rotate, replay rejection, logout-all, access-token rejection.
func TestFullSessionLifecycle(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	profile, err := env.engine.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: "Passw0rd!abc",
		Name:     "Alice",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := env.engine.Login(ctx, "alice@example.com", "Passw0rd!abc")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	first := result.Tokens
	if first == nil {
		t.Fatal("expected tokens")
	}

	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// The old refresh token is dead, the new one works.
	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected old refresh rejection, got %v", err)
	}
	third, err := env.engine.Refresh(ctx, second.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh of new token failed: %v", err)
	}

	if err := env.engine.LogoutAll(ctx, profile.ID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	// Every access token issued along the way is rejected on the next
	// authenticated call.
	for i, access := range []string{first.AccessToken, second.AccessToken, third.AccessToken} {
		if _, err := env.engine.Validate(ctx, access); !errors.Is(err, ErrTokenRejected) {
			t.Fatalf("access token %d: expected rejection after logout-all, got %v", i, err)
		}
	}
}

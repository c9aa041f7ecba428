package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authengine-test",
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	signed, expiry, err := m.CreateAccess(42, "alice@example.com", "user", "jti-1")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if time.Until(expiry) > 15*time.Minute || time.Until(expiry) < 14*time.Minute {
		t.Fatalf("unexpected expiry %v", expiry)
	}

	claims, err := m.ParseAccess(signed)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Email != "alice@example.com" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID != "jti-1" {
		t.Fatalf("expected jti-1, got %s", claims.ID)
	}
	uid, ok := claims.UserID()
	if !ok || uid != 42 {
		t.Fatalf("expected user id 42, got %d (ok=%v)", uid, ok)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	signed, _, err := m.CreateAccess(1, "a@example.com", "user", "jti")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	cfg := hs256Config()
	cfg.Secret = []byte("ffffffffffffffffffffffffffffffff")
	other, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := other.ParseAccess(signed); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := hs256Config()
	cfg.AccessTTL = time.Millisecond
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	signed, _, err := m.CreateAccess(1, "a@example.com", "user", "jti")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := m.ParseAccess(signed); err == nil {
		t.Fatal("expected expired token rejection")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	signed, _, err := m.CreateAccess(1, "a@example.com", "user", "jti")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	parts := strings.Split(signed, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatal("expected tampered token rejection")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	signed, _, err := m.CreateAccess(7, "bob@example.com", "admin", "jti-ed")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	claims, err := m.ParseAccess(signed)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Role != "admin" || claims.ID != "jti-ed" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, _, err := m.CreateAccess(1, "a@example.com", "user", "jti"); err == nil {
		t.Fatal("expected verify-only manager to refuse signing")
	}
}

func TestManagerConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, Secret: []byte("0123456789abcdef0123456789abcdef")}},
		{"short secret", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, Secret: []byte("short")}},
		{"ed25519 missing public key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rs256"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected config rejection")
			}
		})
	}
}

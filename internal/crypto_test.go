package internal

import (
	"bytes"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNewRefreshTokenIsUniqueAndHex(t *testing.T) {
	first, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	second, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	if len(first) != 128 {
		t.Fatalf("expected 128 hex chars, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
}

func TestFingerprintDeterministicAndKeyed(t *testing.T) {
	key := []byte("fingerprint-key")
	a := Fingerprint(key, "raw-token")
	b := Fingerprint(key, "raw-token")
	if a != b {
		t.Fatal("fingerprint must be deterministic")
	}
	if a == Fingerprint([]byte("other-key"), "raw-token") {
		t.Fatal("fingerprint must depend on the key")
	}
	if a == Fingerprint(key, "raw-token-2") {
		t.Fatal("fingerprint must depend on the input")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := SealSecret(testKey(), "JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("SealSecret failed: %v", err)
	}
	if strings.Count(sealed, ".") != 2 {
		t.Fatalf("expected nonce.tag.data payload, got %s", sealed)
	}

	plain, err := OpenSecret(testKey(), sealed)
	if err != nil {
		t.Fatalf("OpenSecret failed: %v", err)
	}
	if plain != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("round trip mismatch: %s", plain)
	}
}

func TestOpenSecretRejectsTamperedPayload(t *testing.T) {
	sealed, err := SealSecret(testKey(), "secret")
	if err != nil {
		t.Fatalf("SealSecret failed: %v", err)
	}

	parts := strings.Split(sealed, ".")
	flipped := []byte(parts[2])
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(flipped)

	if _, err := OpenSecret(testKey(), tampered); err == nil {
		t.Fatal("expected tampered payload to fail authentication")
	}
}

func TestOpenSecretRejectsWrongKey(t *testing.T) {
	sealed, err := SealSecret(testKey(), "secret")
	if err != nil {
		t.Fatalf("SealSecret failed: %v", err)
	}
	wrong := bytes.Repeat([]byte{0x24}, 32)
	if _, err := OpenSecret(wrong, sealed); err == nil {
		t.Fatal("expected wrong key to fail")
	}
}

func TestSealSecretRejectsShortKey(t *testing.T) {
	if _, err := SealSecret([]byte("short"), "secret"); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}

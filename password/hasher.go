package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is the one-way hash capability consumed by the engine. Verify
// reports a mismatch as (false, nil); errors are reserved for malformed
// stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Bcrypt hashes with golang.org/x/crypto/bcrypt. The zero cost falls back
// to bcrypt's default.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt [Hasher] with the given cost. Costs outside
// bcrypt's supported range are rejected at first use by the library; 0
// selects bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash implements [Hasher].
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify implements [Hasher].
func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

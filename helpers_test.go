package authengine

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmarquespt/authengine/password"
	"github.com/dmarquespt/authengine/store"
)

// memStore is an in-memory store.Store for engine tests. It honors the
// same contracts as the GORM implementation, including the conditional
// revoke transition.
type memStore struct {
	mu        sync.Mutex
	users     map[uint]*store.User
	tokens    map[uint]*store.Token
	audit     []store.AuditEntry
	attempts  []store.LoginAttempt
	history   []store.PasswordHistory
	nextUser  uint
	nextToken uint

	failAudit bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uint]*store.User),
		tokens: make(map[uint]*store.Token),
	}
}

func (m *memStore) Users() store.Users       { return (*memUsers)(m) }
func (m *memStore) Tokens() store.Tokens     { return (*memTokens)(m) }
func (m *memStore) Audit() store.Audit       { return (*memAudit)(m) }
func (m *memStore) Attempts() store.Attempts { return (*memAttempts)(m) }
func (m *memStore) History() store.History   { return (*memHistory)(m) }

func (m *memStore) auditEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]string, 0, len(m.audit))
	for _, entry := range m.audit {
		events = append(events, entry.Event)
	}
	return events
}

func (m *memStore) countAudit(event string) int {
	n := 0
	for _, e := range m.auditEvents() {
		if e == event {
			n++
		}
	}
	return n
}

func (m *memStore) attemptRows() []store.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.LoginAttempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

type memUsers memStore

func (m *memUsers) Create(_ context.Context, user *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	m.nextUser++
	user.ID = m.nextUser
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) ByID(_ context.Context, id uint) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	return nil
}

func (m *memUsers) SetTwoFactor(_ context.Context, id uint, enabled bool, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.TwoFactorEnabled = enabled
	user.TOTPSecret = secret
	return nil
}

type memTokens memStore

func (m *memTokens) Create(_ context.Context, token *store.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextToken++
	token.ID = m.nextToken
	token.CreatedAt = time.Now()
	cp := *token
	m.tokens[token.ID] = &cp
	return nil
}

func (m *memTokens) ByFingerprint(_ context.Context, fingerprint string) (*store.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.Fingerprint == fingerprint {
			cp := *token
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memTokens) ByID(_ context.Context, id uint) (*store.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (m *memTokens) Revoke(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok || token.Revoked {
		return false, nil
	}
	token.Revoked = true
	return true, nil
}

func (m *memTokens) ActiveCount(_ context.Context, userID uint, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, token := range m.tokens {
		if token.UserID == userID && !token.Revoked && token.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (m *memTokens) OldestActive(_ context.Context, userID uint, now time.Time) (*store.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *store.Token
	for _, token := range m.tokens {
		if token.UserID != userID || token.Revoked || !token.ExpiresAt.After(now) {
			continue
		}
		if oldest == nil || token.CreatedAt.Before(oldest.CreatedAt) ||
			(token.CreatedAt.Equal(oldest.CreatedAt) && token.ID < oldest.ID) {
			oldest = token
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (m *memTokens) ActiveForUser(_ context.Context, userID uint) ([]store.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Token
	for _, token := range m.tokens {
		if token.UserID == userID && !token.Revoked {
			out = append(out, *token)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTokens) ExpiredUnrevoked(_ context.Context, now time.Time, limit int) ([]store.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Token
	for _, token := range m.tokens {
		if !token.Revoked && !token.ExpiresAt.After(now) {
			out = append(out, *token)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAudit memStore

func (m *memAudit) Append(_ context.Context, entry *store.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit {
		return store.ErrUnavailable
	}
	entry.ID = uint(len(m.audit) + 1)
	entry.CreatedAt = time.Now()
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *memAudit) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.audit[:0]
	var deleted int64
	for _, entry := range m.audit {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	m.audit = kept
	return deleted, nil
}

type memAttempts memStore

func (m *memAttempts) Append(_ context.Context, attempt *store.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = uint(len(m.attempts) + 1)
	attempt.CreatedAt = time.Now()
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memAttempts) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attempts[:0]
	var deleted int64
	for _, attempt := range m.attempts {
		if attempt.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, attempt)
	}
	m.attempts = kept
	return deleted, nil
}

type memHistory memStore

func (m *memHistory) Append(_ context.Context, entry *store.PasswordHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.history) + 1)
	entry.CreatedAt = time.Now()
	m.history = append(m.history, *entry)
	return nil
}

func (m *memHistory) Recent(_ context.Context, userID uint, limit int) ([]store.PasswordHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.PasswordHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].UserID == userID {
			out = append(out, m.history[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memHistory) TrimOldest(_ context.Context, userID uint, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owned int
	for _, entry := range m.history {
		if entry.UserID == userID {
			owned++
		}
	}
	excess := owned - keep
	if excess <= 0 {
		return nil
	}
	kept := m.history[:0]
	for _, entry := range m.history {
		if entry.UserID == userID && excess > 0 {
			excess--
			continue
		}
		kept = append(kept, entry)
	}
	m.history = kept
	return nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("s"), 32)
	cfg.Token.FingerprintKey = bytes.Repeat([]byte("f"), 32)
	cfg.TwoFactor.SealKey = bytes.Repeat([]byte("k"), 32)
	return cfg
}

type testEnv struct {
	engine  *Engine
	durable *memStore
	redis   *miniredis.Miniredis
}

func newTestEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	durable := newMemStore()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(durable).
		WithHasher(password.NewBcrypt(bcrypt.MinCost)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, durable: durable, redis: mr}
}

func registerUser(t *testing.T, env *testEnv, email, pass string) *Profile {
	t.Helper()
	profile, err := env.engine.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: pass,
		Name:     "Test User",
	})
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return profile
}

func mustLogin(t *testing.T, env *testEnv, email, pass string) *LoginResult {
	t.Helper()
	result, err := env.engine.Login(context.Background(), email, pass)
	if err != nil {
		t.Fatalf("Login(%q) failed: %v", email, err)
	}
	return result
}

const testPassword = "Sup3r$ecretPw"

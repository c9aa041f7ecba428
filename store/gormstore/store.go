// Package gormstore implements the store contract on a relational database
// through GORM. Postgres is the supported driver; Open wires a DSN, and any
// *gorm.DB can be injected through New for custom pooling or dialects.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dmarquespt/authengine/store"
)

// Store is the GORM-backed durable store.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and returns a ready Store.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return New(db), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the five tables. Deployments with managed
// migrations can skip this and own the schema themselves.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&User{},
		&Token{},
		&AuditLog{},
		&LoginAttempt{},
		&PasswordHistory{},
	)
}

// Users implements store.Store.
func (s *Store) Users() store.Users { return &users{db: s.db} }

// Tokens implements store.Store.
func (s *Store) Tokens() store.Tokens { return &tokens{db: s.db} }

// Audit implements store.Store.
func (s *Store) Audit() store.Audit { return &audit{db: s.db} }

// Attempts implements store.Store.
func (s *Store) Attempts() store.Attempts { return &attempts{db: s.db} }

// History implements store.Store.
func (s *Store) History() store.History { return &history{db: s.db} }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case isDuplicateError(err):
		return store.ErrDuplicate
	default:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
}

func isDuplicateError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "duplicate key") ||
		strings.Contains(s, "unique constraint") ||
		strings.Contains(s, "UNIQUE constraint")
}

type users struct{ db *gorm.DB }

func (u *users) Create(ctx context.Context, user *store.User) error {
	row := User{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Role:         user.Role,
		Active:       user.Active,
	}
	if err := u.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	user.ID = row.ID
	user.CreatedAt = row.CreatedAt
	return nil
}

func (u *users) ByEmail(ctx context.Context, email string) (*store.User, error) {
	var row User
	if err := u.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return userToRecord(&row), nil
}

func (u *users) ByID(ctx context.Context, id uint) (*store.User, error) {
	var row User
	if err := u.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	return userToRecord(&row), nil
}

func (u *users) UpdatePassword(ctx context.Context, id uint, hash string, changedAt time.Time) error {
	res := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":       hash,
		"password_changed_at": changedAt,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (u *users) SetTwoFactor(ctx context.Context, id uint, enabled bool, secret string) error {
	res := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"two_factor_enabled": enabled,
		"totp_secret":        secret,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func userToRecord(row *User) *store.User {
	return &store.User{
		ID:                row.ID,
		Email:             row.Email,
		PasswordHash:      row.PasswordHash,
		Name:              row.Name,
		Role:              row.Role,
		Active:            row.Active,
		TwoFactorEnabled:  row.TwoFactorEnabled,
		TOTPSecret:        row.TOTPSecret,
		PasswordChangedAt: row.PasswordChangedAt,
		CreatedAt:         row.CreatedAt,
	}
}

type tokens struct{ db *gorm.DB }

func (t *tokens) Create(ctx context.Context, token *store.Token) error {
	row := Token{
		UserID:      token.UserID,
		Fingerprint: token.Fingerprint,
		JTI:         token.JTI,
		Revoked:     token.Revoked,
		ExpiresAt:   token.ExpiresAt,
		IP:          token.IP,
		UserAgent:   token.UserAgent,
		DeviceName:  token.DeviceName,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	token.ID = row.ID
	token.CreatedAt = row.CreatedAt
	return nil
}

func (t *tokens) ByFingerprint(ctx context.Context, fingerprint string) (*store.Token, error) {
	var row Token
	if err := t.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return tokenToRecord(&row), nil
}

func (t *tokens) ByID(ctx context.Context, id uint) (*store.Token, error) {
	var row Token
	if err := t.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	return tokenToRecord(&row), nil
}

// Revoke is the conditional update backing rotation's one-time-use
// guarantee: the revoked=false predicate plus the affected-row count make
// concurrent revokes resolve to exactly one winner.
func (t *tokens) Revoke(ctx context.Context, id uint) (bool, error) {
	res := t.db.WithContext(ctx).Model(&Token{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *tokens) ActiveCount(ctx context.Context, userID uint, now time.Time) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&Token{}).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (t *tokens) OldestActive(ctx context.Context, userID uint, now time.Time) (*store.Token, error) {
	var row Token
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return tokenToRecord(&row), nil
}

func (t *tokens) ActiveForUser(ctx context.Context, userID uint) ([]store.Token, error) {
	var rows []Token
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ?", userID, false).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]store.Token, 0, len(rows))
	for i := range rows {
		out = append(out, *tokenToRecord(&rows[i]))
	}
	return out, nil
}

func (t *tokens) ExpiredUnrevoked(ctx context.Context, now time.Time, limit int) ([]store.Token, error) {
	q := t.db.WithContext(ctx).
		Where("expires_at < ? AND revoked = ?", now, false).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Token
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]store.Token, 0, len(rows))
	for i := range rows {
		out = append(out, *tokenToRecord(&rows[i]))
	}
	return out, nil
}

func tokenToRecord(row *Token) *store.Token {
	return &store.Token{
		ID:          row.ID,
		UserID:      row.UserID,
		Fingerprint: row.Fingerprint,
		JTI:         row.JTI,
		Revoked:     row.Revoked,
		ExpiresAt:   row.ExpiresAt,
		IP:          row.IP,
		UserAgent:   row.UserAgent,
		DeviceName:  row.DeviceName,
		CreatedAt:   row.CreatedAt,
	}
}

type audit struct{ db *gorm.DB }

func (a *audit) Append(ctx context.Context, entry *store.AuditEntry) error {
	row := AuditLog{
		UserID: entry.UserID,
		Event:  entry.Event,
		IP:     entry.IP,
		Meta:   entry.Meta,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt
	return nil
}

func (a *audit) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := a.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&AuditLog{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

type attempts struct{ db *gorm.DB }

func (a *attempts) Append(ctx context.Context, attempt *store.LoginAttempt) error {
	row := LoginAttempt{
		Email:     attempt.Email,
		IP:        attempt.IP,
		UserAgent: attempt.UserAgent,
		Success:   attempt.Success,
		UserID:    attempt.UserID,
		Reason:    attempt.Reason,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	attempt.ID = row.ID
	attempt.CreatedAt = row.CreatedAt
	return nil
}

func (a *attempts) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := a.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&LoginAttempt{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

type history struct{ db *gorm.DB }

func (h *history) Append(ctx context.Context, entry *store.PasswordHistory) error {
	row := PasswordHistory{
		UserID: entry.UserID,
		Hash:   entry.Hash,
	}
	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt
	return nil
}

func (h *history) Recent(ctx context.Context, userID uint, limit int) ([]store.PasswordHistory, error) {
	var rows []PasswordHistory
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]store.PasswordHistory, 0, len(rows))
	for _, row := range rows {
		out = append(out, store.PasswordHistory{
			ID:        row.ID,
			UserID:    row.UserID,
			Hash:      row.Hash,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (h *history) TrimOldest(ctx context.Context, userID uint, keep int) error {
	if keep < 0 {
		keep = 0
	}
	var total int64
	if err := h.db.WithContext(ctx).Model(&PasswordHistory{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return translate(err)
	}
	excess := int(total) - keep
	if excess <= 0 {
		return nil
	}

	var stale []PasswordHistory
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Limit(excess).
		Find(&stale).Error
	if err != nil {
		return translate(err)
	}
	ids := make([]uint, 0, len(stale))
	for _, row := range stale {
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := h.db.WithContext(ctx).Delete(&PasswordHistory{}, ids).Error; err != nil {
		return translate(err)
	}
	return nil
}

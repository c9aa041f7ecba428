package gormstore

import "time"

// User mirrors store.User as a GORM model.
type User struct {
	ID                uint   `gorm:"primaryKey"`
	Email             string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash      string `gorm:"size:255;not null"`
	Name              string `gorm:"size:255"`
	Role              string `gorm:"size:64;not null;default:user"`
	Active            bool   `gorm:"not null;default:true"`
	TwoFactorEnabled  bool   `gorm:"not null;default:false"`
	TOTPSecret        string `gorm:"size:512"`
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Token is one refresh-token row. Fingerprint carries a unique index; a
// collision on insert is a fatal integrity violation surfaced as
// store.ErrDuplicate.
type Token struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index;not null"`
	Fingerprint string `gorm:"size:128;uniqueIndex;not null"`
	JTI         string `gorm:"size:64;index;not null"`
	Revoked     bool   `gorm:"not null;default:false;index"`
	ExpiresAt   time.Time
	IP          string `gorm:"size:64"`
	UserAgent   string `gorm:"size:512"`
	DeviceName  string `gorm:"size:255"`
	CreatedAt   time.Time
}

// AuditLog is an append-only event row; Meta holds the JSON-encoded typed
// metadata payload.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    *uint  `gorm:"index"`
	Event     string `gorm:"size:64;index;not null"`
	IP        string `gorm:"size:64"`
	Meta      []byte
	CreatedAt time.Time `gorm:"index"`
}

// LoginAttempt is an append-only credential-check row.
type LoginAttempt struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"size:255;index"`
	IP        string `gorm:"size:64"`
	UserAgent string `gorm:"size:512"`
	Success   bool   `gorm:"not null"`
	UserID    *uint
	Reason    string    `gorm:"size:128"`
	CreatedAt time.Time `gorm:"index"`
}

// PasswordHistory keeps past password hashes, trimmed to the retention count.
type PasswordHistory struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Hash      string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

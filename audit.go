package authengine

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditKind identifies a security-relevant state transition.
type AuditKind string

const (
	AuditLogin              AuditKind = "LOGIN"
	AuditLogout             AuditKind = "LOGOUT"
	AuditLogoutAll          AuditKind = "LOGOUT_ALL"
	AuditRefresh            AuditKind = "REFRESH"
	AuditRefreshFailed      AuditKind = "REFRESH_FAILED"
	AuditRevoke             AuditKind = "REVOKE"
	AuditBruteForceBlock    AuditKind = "BRUTE_FORCE_BLOCK"
	AuditSuspiciousActivity AuditKind = "SUSPICIOUS_ACTIVITY"
	AuditRegister           AuditKind = "REGISTER"
	AuditPasswordChange     AuditKind = "PASSWORD_CHANGE"
	AuditPasswordReset      AuditKind = "PASSWORD_RESET"
	AuditTwoFactorEnabled   AuditKind = "2FA_ENABLED"
	AuditTwoFactorDisabled  AuditKind = "2FA_DISABLED"
)

// AuditMeta is the metadata payload of one audit event. Each event kind
// has a fixed struct rather than an open map, so consumers can decode
// without guessing shapes.
type AuditMeta interface {
	AuditKind() AuditKind
}

// LoginMeta describes a LOGIN event. Failed credential checks are not
// audit events; they are recorded as LoginAttempt rows by the security
// gate.
type LoginMeta struct {
	Email string `json:"email"`
}

func (LoginMeta) AuditKind() AuditKind { return AuditLogin }

// RefreshMeta describes a REFRESH or REFRESH_FAILED event. Reason is one
// of "invalid_token", "expired", or "reused" on failure.
type RefreshMeta struct {
	TokenID uint   `json:"token_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (m RefreshMeta) AuditKind() AuditKind {
	if m.Reason != "" {
		return AuditRefreshFailed
	}
	return AuditRefresh
}

// RevokeMeta describes a REVOKE, LOGOUT, or LOGOUT_ALL event. Reason tags
// the revocation path: "logout", "logout_all", "rotation",
// "session_limit", "revoked_by_owner", or "expired".
type RevokeMeta struct {
	Kind    AuditKind `json:"-"`
	TokenID uint      `json:"token_id"`
	JTI     string    `json:"jti"`
	Reason  string    `json:"reason"`
}

func (m RevokeMeta) AuditKind() AuditKind {
	if m.Kind != "" {
		return m.Kind
	}
	return AuditRevoke
}

// LogoutAllMeta describes a LOGOUT_ALL event.
type LogoutAllMeta struct {
	Sessions int    `json:"sessions"`
	Reason   string `json:"reason,omitempty"`
}

func (LogoutAllMeta) AuditKind() AuditKind { return AuditLogoutAll }

// BruteForceMeta describes a BRUTE_FORCE_BLOCK event.
type BruteForceMeta struct {
	Email    string `json:"email"`
	Attempts int64  `json:"attempts"`
}

func (BruteForceMeta) AuditKind() AuditKind { return AuditBruteForceBlock }

// SuspiciousMeta describes a SUSPICIOUS_ACTIVITY event.
type SuspiciousMeta struct {
	Region  string   `json:"region"`
	Regions []string `json:"regions"`
}

func (SuspiciousMeta) AuditKind() AuditKind { return AuditSuspiciousActivity }

// RegisterMeta describes a REGISTER event.
type RegisterMeta struct {
	Email string `json:"email"`
}

func (RegisterMeta) AuditKind() AuditKind { return AuditRegister }

// PasswordMeta describes a PASSWORD_CHANGE or PASSWORD_RESET event. Via is
// "change" or "reset".
type PasswordMeta struct {
	Via string `json:"via"`
}

func (m PasswordMeta) AuditKind() AuditKind {
	if m.Via == "reset" {
		return AuditPasswordReset
	}
	return AuditPasswordChange
}

// TwoFactorMeta describes a 2FA_ENABLED or 2FA_DISABLED event.
type TwoFactorMeta struct {
	Enabled bool `json:"enabled"`
}

func (m TwoFactorMeta) AuditKind() AuditKind {
	if m.Enabled {
		return AuditTwoFactorEnabled
	}
	return AuditTwoFactorDisabled
}

// AuditEvent is one recorded security event.
type AuditEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      AuditKind `json:"kind"`
	UserID    *uint     `json:"user_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Meta      AuditMeta `json:"meta,omitempty"`
}

// AuditSink receives events asynchronously for operational consumers. The
// durable audit row is written synchronously regardless of any sink.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink exposes events on a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

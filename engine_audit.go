package authengine

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dmarquespt/authengine/store"
)

// recordAudit writes the durable audit row synchronously, after the state
// change it describes, then hands the event to the sink dispatcher. An
// append failure is surfaced to operational logging and never rolls back
// the state change; both the row write and the sink hand-off run on a
// cancellation-free context so an abandoned request still leaves its
// trace.
func (e *Engine) recordAudit(ctx context.Context, userID *uint, ip string, meta AuditMeta) {
	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      meta.AuditKind(),
		UserID:    userID,
		IP:        ip,
		Meta:      meta,
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		log.Printf("authengine: audit metadata for %s not serializable: %v", event.Kind, err)
		payload = nil
	}

	appendCtx := context.WithoutCancel(ctx)
	if err := e.durable.Audit().Append(appendCtx, &store.AuditEntry{
		UserID: userID,
		Event:  string(event.Kind),
		IP:     ip,
		Meta:   payload,
	}); err != nil {
		log.Printf("authengine: audit append for %s failed: %v", event.Kind, err)
	}

	e.audit.Emit(appendCtx, event)
}

// PurgeAuditBefore deletes audit rows older than the cutoff. Retention is
// the Sweeper's concern; request paths never call this.
func (e *Engine) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return e.durable.Audit().DeleteOlderThan(ctx, cutoff)
}

// PurgeAttemptsBefore deletes login-attempt rows older than the cutoff.
func (e *Engine) PurgeAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return e.durable.Attempts().DeleteOlderThan(ctx, cutoff)
}

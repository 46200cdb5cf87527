package shared

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row of the audit trail. An empty At means "now".
type AuditLog struct {
	Actor    Actor
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) validate() error {
	verr := &ValidationError{}
	if l.Action == "" {
		verr.Add("action", "required")
	}
	if l.Entity == "" {
		verr.Add("entity", "required")
	}
	if l.EntityID == "" {
		verr.Add("entity_id", "required")
	}
	return verr.OrNil()
}

// Auditor records audit entries.
type Auditor interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger appends entries to audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry. Without an explicit actor, the one carried by
// ctx is used.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if err := log.validate(); err != nil {
		return err
	}
	if log.Actor.IsZero() {
		log.Actor, _ = ActorFromContext(ctx)
	}
	var meta []byte
	if len(log.Meta) > 0 {
		raw, err := json.Marshal(log.Meta)
		if err != nil {
			return err
		}
		meta = raw
	}
	at := log.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		log.Actor.IDPtr(), log.Action, log.Entity, log.EntityID, meta, at.UTC())
	return err
}

// NopAuditor discards entries.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, AuditLog) error { return nil }

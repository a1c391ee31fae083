package audit

import (
	"context"
	"database/sql"
)

// SQLRepo appends audit events to Postgres. Insert-only; retention and
// immutability enforcement live in the schema.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events
  (id, company_id, type, actor_user_id, actor_role, ip_address,
   extension_id, pattern_id, record_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.CompanyID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.ExtensionID, e.PatternID, e.RecordID, e.Message, e.Metadata, e.CreatedAt)
	return err
}

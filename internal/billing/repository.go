package billing

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: assumes a call_records table with the columns below and
// company_id declared ON DELETE SET NULL.

var ErrNotFound = errors.New("call record not found")

const recordColumns = `
id, company_id, caller, callee, call_time, external_number, duration,
time_answered, time_end, reason_terminated, reason_changed, missed_queue_calls,
from_no, from_type, from_dispname, to_no, to_dn, to_type, to_dispname,
final_number, final_dn, final_type, final_dispname,
country, call_category, call_rate, total_cost, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var r CallRecord
	err := row.Scan(
		&r.ID,
		&r.CompanyID,
		&r.Caller,
		&r.Callee,
		&r.CallTime,
		&r.ExternalNumber,
		&r.DurationSeconds,
		&r.TimeAnswered,
		&r.TimeEnd,
		&r.ReasonTerminated,
		&r.ReasonChanged,
		&r.MissedQueueCalls,
		&r.FromNo,
		&r.FromType,
		&r.FromDispname,
		&r.ToNo,
		&r.ToDN,
		&r.ToType,
		&r.ToDispname,
		&r.FinalNumber,
		&r.FinalDN,
		&r.FinalType,
		&r.FinalDispname,
		&r.Country,
		&r.CallCategory,
		&r.CallRate,
		&r.TotalCost,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return r, nil
}

// lockRecord reads the currently persisted record and locks the row so the
// cost delta is computed against a stable previous state.
func lockRecord(ctx context.Context, tx *sql.Tx, id string) (CallRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM call_records WHERE id = $1 FOR UPDATE`
	return scanRecord(tx.QueryRowContext(ctx, q, id))
}

func getRecord(ctx context.Context, db *sql.DB, id string) (CallRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM call_records WHERE id = $1`
	return scanRecord(db.QueryRowContext(ctx, q, id))
}

func recordArgs(r CallRecord) []any {
	return []any{
		r.ID,
		r.CompanyID,
		r.Caller,
		r.Callee,
		r.CallTime,
		r.ExternalNumber,
		r.DurationSeconds,
		r.TimeAnswered,
		r.TimeEnd,
		r.ReasonTerminated,
		r.ReasonChanged,
		r.MissedQueueCalls,
		r.FromNo,
		r.FromType,
		r.FromDispname,
		r.ToNo,
		r.ToDN,
		r.ToType,
		r.ToDispname,
		r.FinalNumber,
		r.FinalDN,
		r.FinalType,
		r.FinalDispname,
		r.Country,
		r.CallCategory,
		r.CallRate,
		r.TotalCost,
		r.CreatedAt,
		r.UpdatedAt,
	}
}

func insertRecord(ctx context.Context, tx *sql.Tx, r CallRecord) error {
	const q = `
INSERT INTO call_records (
  id, company_id, caller, callee, call_time, external_number, duration,
  time_answered, time_end, reason_terminated, reason_changed, missed_queue_calls,
  from_no, from_type, from_dispname, to_no, to_dn, to_type, to_dispname,
  final_number, final_dn, final_type, final_dispname,
  country, call_category, call_rate, total_cost, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
  $20,$21,$22,$23,$24,$25,$26,$27,$28,$29
)
`
	_, err := tx.ExecContext(ctx, q, recordArgs(r)...)
	return err
}

func updateRecord(ctx context.Context, tx *sql.Tx, r CallRecord) error {
	const q = `
UPDATE call_records SET
  company_id = $2, caller = $3, callee = $4, call_time = $5, external_number = $6,
  duration = $7, time_answered = $8, time_end = $9, reason_terminated = $10,
  reason_changed = $11, missed_queue_calls = $12, from_no = $13, from_type = $14,
  from_dispname = $15, to_no = $16, to_dn = $17, to_type = $18, to_dispname = $19,
  final_number = $20, final_dn = $21, final_type = $22, final_dispname = $23,
  country = $24, call_category = $25, call_rate = $26, total_cost = $27,
  created_at = $28, updated_at = $29
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, q, recordArgs(r)...)
	return err
}

func listRecords(ctx context.Context, db *sql.DB, companyID string, limit, offset int) ([]CallRecord, error) {
	q := `SELECT ` + recordColumns + `
FROM call_records
WHERE company_id = $1
ORDER BY call_time DESC
LIMIT $2 OFFSET $3`
	rows, err := db.QueryContext(ctx, q, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listRecordIDsMatchingPrefix(ctx context.Context, db *sql.DB, companyID, prefix string) ([]string, error) {
	// Used by bulk recategorization after a pattern change; mirrors the
	// matcher's prefix rule closely enough to pre-filter candidates.
	const q = `
SELECT id
FROM call_records
WHERE company_id = $1 AND callee LIKE $2 || '%'
ORDER BY call_time
`
	rows, err := db.QueryContext(ctx, q, companyID, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

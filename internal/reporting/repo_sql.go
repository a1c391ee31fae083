package reporting

import (
	"context"
	"database/sql"
	"time"
)

// SQLRepo reads call records straight from the billing tables. Reporting
// is read-only, so it takes the shared handle rather than a transaction.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) ListCallRows(ctx context.Context, companyID string, from, to time.Time) ([]CallRow, error) {
	const base = `
SELECT callee, call_time, COALESCE(duration, 0), total_cost
FROM call_records
WHERE call_time >= $1 AND call_time <= $2
`
	var rows *sql.Rows
	var err error
	if companyID == "" {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY call_time`, from, to)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` AND company_id = $3 ORDER BY call_time`, from, to, companyID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRow
	for rows.Next() {
		var row CallRow
		if err := rows.Scan(&row.Callee, &row.CallTime, &row.DurationSeconds, &row.TotalCost); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

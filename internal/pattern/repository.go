package pattern

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store persists call patterns.
//
// NOTE: assumes a call_patterns table with the columns below.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

var (
	ErrNotFound       = errors.New("pattern not found")
	ErrInvalidPattern = errors.New("invalid pattern")
)

const patternColumns = `id, company_id, pattern, call_type, rate_per_min, description, created_at, updated_at`

// ListForCompany returns a company's patterns ordered by descending pattern
// text, the evaluation order the matcher expects.
func (s *Store) ListForCompany(ctx context.Context, companyID string) ([]CallPattern, error) {
	const q = `
SELECT ` + patternColumns + `
FROM call_patterns
WHERE company_id = $1
ORDER BY pattern DESC
`
	rows, err := s.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallPattern
	for rows.Next() {
		var p CallPattern
		if err := rows.Scan(
			&p.ID, &p.CompanyID, &p.Pattern, &p.CallType, &p.RatePerMin, &p.Description, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (CallPattern, error) {
	const q = `SELECT ` + patternColumns + ` FROM call_patterns WHERE id = $1`
	var p CallPattern
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.CompanyID, &p.Pattern, &p.CallType, &p.RatePerMin, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallPattern{}, ErrNotFound
		}
		return CallPattern{}, err
	}
	return p, nil
}

// Create validates and inserts a pattern.
func (s *Store) Create(ctx context.Context, companyID, patternText string, callType CallType, ratePerMin decimal.Decimal, description string) (CallPattern, error) {
	if companyID == "" || patternText == "" || !ValidCallType(callType) || ratePerMin.IsNegative() {
		return CallPattern{}, ErrInvalidPattern
	}

	now := s.clock().UTC()
	p := CallPattern{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		Pattern:     patternText,
		CallType:    callType,
		RatePerMin:  ratePerMin,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	const q = `
INSERT INTO call_patterns (id, company_id, pattern, call_type, rate_per_min, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	if _, err := s.db.ExecContext(ctx, q,
		p.ID, p.CompanyID, p.Pattern, p.CallType, p.RatePerMin, p.Description, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return CallPattern{}, err
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM call_patterns WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

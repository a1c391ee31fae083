package quota

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following tables exist:
// - quotas
// - user_quotas (one row per extension, UNIQUE (extension_id))
// - quota_adjustments (append-only)

func lockUserQuota(ctx context.Context, tx *sql.Tx, extensionID string) (UserQuota, error) {
	// Lock the balance row to serialize concurrent money operations per
	// extension.
	const q = `
SELECT id, extension_id, quota_id, total_amount, used_amount, last_reset
FROM user_quotas
WHERE extension_id = $1
FOR UPDATE
`
	var uq UserQuota
	if err := tx.QueryRowContext(ctx, q, extensionID).Scan(
		&uq.ID,
		&uq.ExtensionID,
		&uq.QuotaID,
		&uq.TotalAmount,
		&uq.UsedAmount,
		&uq.LastReset,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserQuota{}, ErrNotFound
		}
		return UserQuota{}, err
	}

	if uq.QuotaID != nil {
		p, err := getPolicyTx(ctx, tx, *uq.QuotaID)
		if err != nil {
			return UserQuota{}, err
		}
		uq.Policy = &p
	}
	return uq, nil
}

func getPolicyTx(ctx context.Context, tx *sql.Tx, quotaID string) (Quota, error) {
	const q = `
SELECT id, company_id, name, amount, frequency, created_at, updated_at
FROM quotas
WHERE id = $1
`
	var p Quota
	if err := tx.QueryRowContext(ctx, q, quotaID).Scan(
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&p.Amount,
		&p.Frequency,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quota{}, ErrNotFound
		}
		return Quota{}, err
	}
	return p, nil
}

func saveUserQuota(ctx context.Context, tx *sql.Tx, uq UserQuota) error {
	const q = `
UPDATE user_quotas
SET quota_id = $2, total_amount = $3, used_amount = $4, last_reset = $5
WHERE extension_id = $1
`
	_, err := tx.ExecContext(ctx, q,
		uq.ExtensionID,
		uq.QuotaID,
		uq.TotalAmount,
		uq.UsedAmount,
		uq.LastReset,
	)
	return err
}

func insertUserQuota(ctx context.Context, tx *sql.Tx, uq UserQuota) error {
	const q = `
INSERT INTO user_quotas (id, extension_id, quota_id, total_amount, used_amount, last_reset)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (extension_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q,
		uq.ID,
		uq.ExtensionID,
		uq.QuotaID,
		uq.TotalAmount,
		uq.UsedAmount,
		uq.LastReset,
	)
	return err
}

func insertAdjustment(ctx context.Context, tx *sql.Tx, a QuotaAdjustment) error {
	const q = `
INSERT INTO quota_adjustments (id, extension_id, actor_user_id, actor_role, amount, reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := tx.ExecContext(ctx, q,
		a.ID,
		a.ExtensionID,
		a.ActorUserID,
		a.ActorRole,
		a.Amount,
		a.Reason,
		a.CreatedAt,
	)
	return err
}

func getUserQuota(ctx context.Context, db *sql.DB, extensionID string) (UserQuota, error) {
	const q = `
SELECT uq.id, uq.extension_id, uq.quota_id, uq.total_amount, uq.used_amount, uq.last_reset
FROM user_quotas uq
WHERE uq.extension_id = $1
`
	var uq UserQuota
	if err := db.QueryRowContext(ctx, q, extensionID).Scan(
		&uq.ID,
		&uq.ExtensionID,
		&uq.QuotaID,
		&uq.TotalAmount,
		&uq.UsedAmount,
		&uq.LastReset,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserQuota{}, ErrNotFound
		}
		return UserQuota{}, err
	}

	if uq.QuotaID != nil {
		p, err := getPolicy(ctx, db, *uq.QuotaID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return UserQuota{}, err
		}
		if err == nil {
			uq.Policy = &p
		}
	}
	return uq, nil
}

func getPolicy(ctx context.Context, db *sql.DB, quotaID string) (Quota, error) {
	const q = `
SELECT id, company_id, name, amount, frequency, created_at, updated_at
FROM quotas
WHERE id = $1
`
	var p Quota
	if err := db.QueryRowContext(ctx, q, quotaID).Scan(
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&p.Amount,
		&p.Frequency,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quota{}, ErrNotFound
		}
		return Quota{}, err
	}
	return p, nil
}

func insertPolicy(ctx context.Context, db *sql.DB, p Quota) error {
	const q = `
INSERT INTO quotas (id, company_id, name, amount, frequency, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := db.ExecContext(ctx, q,
		p.ID, p.CompanyID, p.Name, p.Amount, p.Frequency, p.CreatedAt, p.UpdatedAt)
	return err
}

func listPolicies(ctx context.Context, db *sql.DB, companyID string) ([]Quota, error) {
	const q = `
SELECT id, company_id, name, amount, frequency, created_at, updated_at
FROM quotas
WHERE company_id = $1
ORDER BY created_at
`
	rows, err := db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Quota
	for rows.Next() {
		var p Quota
		if err := rows.Scan(
			&p.ID, &p.CompanyID, &p.Name, &p.Amount, &p.Frequency, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func listQuotaExtensionIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	const q = `
SELECT extension_id
FROM user_quotas
WHERE quota_id IS NOT NULL
ORDER BY extension_id
`
	rows, err := db.QueryContext(ctx, q)
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

func listLowBalance(ctx context.Context, db *sql.DB) ([]UserQuota, error) {
	// Remaining balance at or below half of the policy amount.
	const q = `
SELECT uq.id, uq.extension_id, uq.quota_id, uq.total_amount, uq.used_amount, uq.last_reset,
       p.id, p.company_id, p.name, p.amount, p.frequency, p.created_at, p.updated_at
FROM user_quotas uq
JOIN quotas p ON p.id = uq.quota_id
WHERE p.amount > 0
  AND (uq.total_amount - uq.used_amount) <= p.amount / 2
ORDER BY uq.extension_id
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserQuota
	for rows.Next() {
		var uq UserQuota
		var p Quota
		if err := rows.Scan(
			&uq.ID,
			&uq.ExtensionID,
			&uq.QuotaID,
			&uq.TotalAmount,
			&uq.UsedAmount,
			&uq.LastReset,
			&p.ID,
			&p.CompanyID,
			&p.Name,
			&p.Amount,
			&p.Frequency,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		uq.Policy = &p
		out = append(out, uq)
	}
	return out, rows.Err()
}

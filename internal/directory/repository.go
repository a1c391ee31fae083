package directory

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following tables exist:
// - companies (UNIQUE (listening_port) where not null)
// - extensions (UNIQUE (company_id, number))

const companyColumns = `id, name, address, phone, listening_port, created_at, updated_at`

func scanCompany(row *sql.Row) (Company, error) {
	var c Company
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.Phone,
		&c.ListeningPort,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

func getCompanyByPort(ctx context.Context, db *sql.DB, port int) (Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies WHERE listening_port = $1`
	return scanCompany(db.QueryRowContext(ctx, q, port))
}

func getCompanyByName(ctx context.Context, db *sql.DB, name string) (Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies WHERE name = $1`
	return scanCompany(db.QueryRowContext(ctx, q, name))
}

func getCompany(ctx context.Context, db *sql.DB, id string) (Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return scanCompany(db.QueryRowContext(ctx, q, id))
}

func insertCompany(ctx context.Context, db *sql.DB, c Company) error {
	const q = `
INSERT INTO companies (id, name, address, phone, listening_port, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := db.ExecContext(ctx, q,
		c.ID, c.Name, c.Address, c.Phone, c.ListeningPort, c.CreatedAt, c.UpdatedAt)
	return err
}

func listCompanies(ctx context.Context, db *sql.DB) ([]Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies ORDER BY name`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Address, &c.Phone, &c.ListeningPort, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func listListeningPorts(ctx context.Context, db *sql.DB) ([]int, error) {
	const q = `
SELECT DISTINCT listening_port
FROM companies
WHERE listening_port IS NOT NULL
ORDER BY listening_port
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ports []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, rows.Err()
}

const extensionColumns = `id, company_id, number, first_name, last_name, full_name, email, created_at, updated_at`

func scanExtension(row *sql.Row) (Extension, error) {
	var e Extension
	if err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.Number,
		&e.FirstName,
		&e.LastName,
		&e.FullName,
		&e.Email,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Extension{}, ErrNotFound
		}
		return Extension{}, err
	}
	return e, nil
}

func findExtension(ctx context.Context, db *sql.DB, number, companyID string) (Extension, error) {
	const q = `SELECT ` + extensionColumns + ` FROM extensions WHERE number = $1 AND company_id = $2`
	return scanExtension(db.QueryRowContext(ctx, q, number, companyID))
}

func getExtension(ctx context.Context, db *sql.DB, id string) (Extension, error) {
	const q = `SELECT ` + extensionColumns + ` FROM extensions WHERE id = $1`
	return scanExtension(db.QueryRowContext(ctx, q, id))
}

func insertExtensionTx(ctx context.Context, tx *sql.Tx, e Extension) error {
	const q = `
INSERT INTO extensions (id, company_id, number, first_name, last_name, full_name, email, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.CompanyID, e.Number, e.FirstName, e.LastName, e.FullName, e.Email, e.CreatedAt, e.UpdatedAt)
	return err
}

func listExtensions(ctx context.Context, db *sql.DB, companyID string) ([]Extension, error) {
	const q = `SELECT ` + extensionColumns + ` FROM extensions WHERE company_id = $1 ORDER BY number`
	rows, err := db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extension
	for rows.Next() {
		var e Extension
		if err := rows.Scan(
			&e.ID, &e.CompanyID, &e.Number, &e.FirstName, &e.LastName, &e.FullName, &e.Email, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func firstCompanyQuotaID(ctx context.Context, db *sql.DB, companyID string) (string, error) {
	const q = `
SELECT id
FROM quotas
WHERE company_id = $1
ORDER BY created_at
LIMIT 1
`
	var id string
	if err := db.QueryRowContext(ctx, q, companyID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return id, nil
}

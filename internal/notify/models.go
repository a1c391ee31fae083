package notify

import (
	"context"
	"database/sql"
	"time"
)

// Notification is the stored copy of an alert that went out. The dashboard
// reads these; delivery itself goes through a Sink.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func insertNotification(ctx context.Context, db *sql.DB, n Notification) error {
	const q = `
INSERT INTO notifications (id, recipient, subject, message, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := db.ExecContext(ctx, q, n.ID, n.Recipient, n.Subject, n.Message, n.CreatedAt)
	return err
}

func listNotifications(ctx context.Context, db *sql.DB, limit int) ([]Notification, error) {
	const q = `
SELECT id, recipient, subject, message, created_at
FROM notifications
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Subject, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

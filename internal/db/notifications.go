package db

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"churchcare/internal/models"
)

func InsertNotification(ctx context.Context, database *sql.DB, n models.Notification) (int64, error) {
	var id int64
	err := database.QueryRowContext(ctx, `
		INSERT INTO notifications (recipient_id, kind, title, message, related_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, n.RecipientID, string(n.Kind), n.Title, n.Message, n.RelatedID).Scan(&id)
	return id, err
}

func ListNotifications(ctx context.Context, database *sql.DB, recipientID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, recipient_id, kind, title, message, related_id, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		q += ` AND NOT is_read`
	}
	q += ` ORDER BY created_at DESC LIMIT $2`
	rows, err := database.QueryContext(ctx, q, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.RecipientID, &kind, &n.Title, &n.Message, &n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = models.NotificationKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func MarkNotificationsRead(ctx context.Context, database *sql.DB, recipientID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := database.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_id = $1 AND id = ANY($2)
	`, recipientID, pq.Array(ids))
	return err
}

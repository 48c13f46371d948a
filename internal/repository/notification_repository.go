package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/voxkit/license-server/internal/database"
	"github.com/voxkit/license-server/internal/models"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, device_id, type, title, message, credits_change, seen, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var seen int
	if err := row.Scan(&n.ID, &n.DeviceID, &n.Type, &n.Title, &n.Message, &n.CreditsChange, &seen, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Seen = seen != 0
	return &n, nil
}

func (r *NotificationRepository) Append(ctx context.Context, n *models.Notification) error {
	const query = `
INSERT INTO notifications (device_id, type, title, message, credits_change)
VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, n.DeviceID, n.Type, n.Title, n.Message, n.CreditsChange); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// FetchUnseenAndMarkSeen returns the device's undelivered notifications and
// marks them seen in the same transaction, so each notification is handed out
// at most once even under concurrent polling.
func (r *NotificationRepository) FetchUnseenAndMarkSeen(ctx context.Context, deviceID string) ([]models.Notification, error) {
	var result []models.Notification
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `SELECT ` + notificationColumns + ` FROM notifications WHERE device_id = ? AND seen = 0 ORDER BY created_at DESC, id DESC`
		rows, err := tx.QueryContext(ctx, query, deviceID)
		if err != nil {
			return fmt.Errorf("select unseen notifications: %w", err)
		}
		defer rows.Close()

		var fetched []models.Notification
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return fmt.Errorf("scan notification: %w", err)
			}
			fetched = append(fetched, *n)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(fetched) == 0 {
			result = nil
			return nil
		}

		// Mark exactly the rows we are returning, not whatever is unseen
		// by the time the update runs.
		ids := make([]any, 0, len(fetched))
		placeholders := make([]string, 0, len(fetched))
		for i := range fetched {
			ids = append(ids, fetched[i].ID)
			placeholders = append(placeholders, "?")
			fetched[i].Seen = true
		}
		mark := `UPDATE notifications SET seen = 1 WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
		if _, err := tx.ExecContext(ctx, mark, ids...); err != nil {
			return fmt.Errorf("mark notifications seen: %w", err)
		}

		result = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListRecent returns the latest notifications for a device regardless of the
// seen flag (admin detail view).
func (r *NotificationRepository) ListRecent(ctx context.Context, deviceID string, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE device_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification list: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

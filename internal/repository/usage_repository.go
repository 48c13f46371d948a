package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voxkit/license-server/internal/models"
)

type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Log(ctx context.Context, e *models.UsageEntry) error {
	const query = `
INSERT INTO usage_logs (device_id, text_preview, text_length, voice, ip_address)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query, e.DeviceID, e.TextPreview, e.TextLength, e.Voice, e.IPAddress); err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

// ListRecent returns the latest usage entries for a device.
func (r *UsageRepository) ListRecent(ctx context.Context, deviceID string, limit int) ([]models.UsageEntry, error) {
	const query = `
SELECT id, device_id, COALESCE(text_preview, ''), text_length, COALESCE(voice, ''), COALESCE(ip_address, ''), created_at
FROM usage_logs
WHERE device_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage logs: %w", err)
	}
	defer rows.Close()

	var entries []models.UsageEntry
	for rows.Next() {
		var e models.UsageEntry
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.TextPreview, &e.TextLength, &e.Voice, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountForDevice reports how many usage entries a device has logged in total.
func (r *UsageRepository) CountForDevice(ctx context.Context, deviceID string) (int, error) {
	const query = `SELECT COUNT(*) FROM usage_logs WHERE device_id = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count usage logs: %w", err)
	}
	return count, nil
}

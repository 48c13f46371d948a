package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxkit/license-server/internal/models"
)

type LicenseRepository struct {
	db *sql.DB
}

func NewLicenseRepository(db *sql.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

func (r *LicenseRepository) DB() *sql.DB {
	return r.db
}

const licenseColumns = `device_id, tier, credits, unlimited, COALESCE(expires, ''), daily_used, COALESCE(daily_reset, ''), COALESCE(coupon_used, ''), suspended, COALESCE(suspend_reason, ''), total_generations, COALESCE(last_active, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*models.License, error) {
	var l models.License
	var unlimited, suspended int
	if err := row.Scan(&l.DeviceID, &l.Tier, &l.Credits, &unlimited, &l.Expires, &l.DailyUsed, &l.DailyReset, &l.CouponUsed, &suspended, &l.SuspendReason, &l.TotalGenerations, &l.LastActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Unlimited = unlimited != 0
	l.Suspended = suspended != 0
	return &l, nil
}

// GetByDevice returns the license for a device, or nil when none exists.
func (r *LicenseRepository) GetByDevice(ctx context.Context, deviceID string) (*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE device_id = ?`
	l, err := scanLicense(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan license: %w", err)
	}
	return l, nil
}

func (r *LicenseRepository) Create(ctx context.Context, l *models.License) error {
	const query = `
INSERT INTO licenses (device_id, tier, credits, unlimited, expires, daily_used, daily_reset, coupon_used, suspended, suspend_reason, total_generations, last_active)
VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), ?, NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query,
		l.DeviceID, l.Tier, l.Credits, boolToInt(l.Unlimited), l.Expires, l.DailyUsed, l.DailyReset,
		l.CouponUsed, boolToInt(l.Suspended), l.SuspendReason, l.TotalGenerations, l.LastActive,
	); err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

// Save writes every mutable field of the record back to the store.
func (r *LicenseRepository) Save(ctx context.Context, l *models.License) error {
	if _, err := r.db.ExecContext(ctx, saveLicenseQuery, saveLicenseArgs(l)...); err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	return nil
}

// SaveLicenseTx is Save inside an existing transaction (coupon redemption
// commits the coupon flag and the license update atomically).
func SaveLicenseTx(ctx context.Context, tx *sql.Tx, l *models.License) error {
	if _, err := tx.ExecContext(ctx, saveLicenseQuery, saveLicenseArgs(l)...); err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	return nil
}

const saveLicenseQuery = `
UPDATE licenses
SET tier = ?, credits = ?, unlimited = ?, expires = NULLIF(?, ''), daily_used = ?, daily_reset = NULLIF(?, ''), coupon_used = NULLIF(?, ''), suspended = ?, suspend_reason = NULLIF(?, ''), total_generations = ?, last_active = NULLIF(?, ''), updated_at = CURRENT_TIMESTAMP
WHERE device_id = ?`

func saveLicenseArgs(l *models.License) []any {
	return []any{
		l.Tier, l.Credits, boolToInt(l.Unlimited), l.Expires, l.DailyUsed, l.DailyReset,
		l.CouponUsed, boolToInt(l.Suspended), l.SuspendReason, l.TotalGenerations, l.LastActive,
		l.DeviceID,
	}
}

// Ensure returns the device's license, creating the free-tier seed record on
// first contact. The bool reports whether a new record was created.
func (r *LicenseRepository) Ensure(ctx context.Context, seed *models.License) (*models.License, bool, error) {
	existing, err := r.GetByDevice(ctx, seed.DeviceID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := r.TouchLastActive(ctx, existing.DeviceID, seed.LastActive); err != nil {
			return nil, false, err
		}
		existing.LastActive = seed.LastActive
		return existing, false, nil
	}
	if err := r.Create(ctx, seed); err != nil {
		return nil, false, err
	}
	return seed, true, nil
}

func (r *LicenseRepository) TouchLastActive(ctx context.Context, deviceID, ts string) error {
	const query = `UPDATE licenses SET last_active = ? WHERE device_id = ?`
	if _, err := r.db.ExecContext(ctx, query, ts, deviceID); err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	return nil
}

// List returns all licenses, most recently active first.
func (r *LicenseRepository) List(ctx context.Context) ([]models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY COALESCE(last_active, '') DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license list: %w", err)
		}
		licenses = append(licenses, *l)
	}
	return licenses, rows.Err()
}

// Stats aggregates the dashboard counters.
type LicenseStats struct {
	Devices          int
	ProDevices       int
	SuspendedDevices int
	TotalGenerations int64
}

func (r *LicenseRepository) Stats(ctx context.Context) (LicenseStats, error) {
	const query = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN tier = 'pro' THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN suspended = 1 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(total_generations), 0)
FROM licenses`
	var s LicenseStats
	row := r.db.QueryRowContext(ctx, query)
	if err := row.Scan(&s.Devices, &s.ProDevices, &s.SuspendedDevices, &s.TotalGenerations); err != nil {
		return LicenseStats{}, fmt.Errorf("license stats: %w", err)
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

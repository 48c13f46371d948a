package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxkit/license-server/internal/models"
)

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) DB() *sql.DB {
	return r.db
}

const couponColumns = `code, class, credits, days, unlimited, batch_id, used, COALESCE(used_by, ''), COALESCE(used_at, ''), created_at`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var c models.Coupon
	var unlimited, used int
	if err := row.Scan(&c.Code, &c.Class, &c.Credits, &c.Days, &unlimited, &c.BatchID, &used, &c.UsedBy, &c.UsedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Unlimited = unlimited != 0
	c.Used = used != 0
	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *models.Coupon) error {
	const query = `
INSERT INTO coupons (code, class, credits, days, unlimited, batch_id)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, c.Code, c.Class, c.Credits, c.Days, boolToInt(c.Unlimited), c.BatchID); err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByCode returns the coupon, or nil when the code is unknown.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = ?`
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}
	return c, nil
}

// MarkCouponUsedTx flips the used flag exactly once. The WHERE clause is the
// compare-and-set: of any number of concurrent redemptions, only the first
// commit sees an affected row.
func MarkCouponUsedTx(ctx context.Context, tx *sql.Tx, code, deviceID, usedAt string) (bool, error) {
	const query = `
UPDATE coupons SET used = 1, used_by = ?, used_at = ?
WHERE code = ? AND used = 0`
	res, err := tx.ExecContext(ctx, query, deviceID, usedAt, code)
	if err != nil {
		return false, fmt.Errorf("mark coupon used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("coupon rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns the most recently issued coupons.
func (r *CouponRepository) List(ctx context.Context, limit int) ([]models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, code ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon list: %w", err)
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

type CouponStats struct {
	Total int
	Used  int
}

func (r *CouponRepository) Stats(ctx context.Context) (CouponStats, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(CASE WHEN used = 1 THEN 1 ELSE 0 END), 0) FROM coupons`
	var s CouponStats
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Used); err != nil {
		return CouponStats{}, fmt.Errorf("coupon stats: %w", err)
	}
	return s, nil
}

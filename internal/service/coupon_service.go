package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxkit/license-server/internal/config"
	"github.com/voxkit/license-server/internal/database"
	"github.com/voxkit/license-server/internal/license"
	"github.com/voxkit/license-server/internal/models"
	"github.com/voxkit/license-server/internal/repository"
)

// maxIssueCount caps one issuance call; big drops go out as several batches.
const maxIssueCount = 1000

type CouponService struct {
	cfg      config.Config
	log      *slog.Logger
	coupons  *repository.CouponRepository
	licenses *repository.LicenseRepository
	locks    *DeviceLocks
	now      func() time.Time
}

func NewCouponService(
	cfg config.Config,
	log *slog.Logger,
	coupons *repository.CouponRepository,
	licenses *repository.LicenseRepository,
	locks *DeviceLocks,
) *CouponService {
	return &CouponService{
		cfg:      cfg,
		log:      log,
		coupons:  coupons,
		licenses: licenses,
		locks:    locks,
		now:      time.Now,
	}
}

// IssueResult is one issuance batch.
type IssueResult struct {
	BatchID string
	Codes   []string
}

// Issue generates count unused codes of the given class. All codes of one
// call share a batch id for audit.
func (s *CouponService) Issue(ctx context.Context, classID string, count int) (*IssueResult, error) {
	class, ok := models.CouponClasses[classID]
	if !ok {
		return nil, ErrInvalidCouponClass
	}
	if count <= 0 {
		count = 1
	}
	if count > maxIssueCount {
		return nil, fmt.Errorf("%w: at most %d codes per batch", ErrInvalidAmount, maxIssueCount)
	}

	batchID := uuid.NewString()
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := license.GenerateCode(class.ID, s.cfg.CouponSecret)
		if err != nil {
			return nil, err
		}
		coupon := &models.Coupon{
			Code:      code,
			Class:     class.ID,
			Credits:   class.Credits,
			Days:      class.Days,
			Unlimited: class.Unlimited,
			BatchID:   batchID,
		}
		if err := s.coupons.Create(ctx, coupon); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	s.log.Info("coupons issued", "class", class.ID, "count", count, "batch", batchID)
	return &IssueResult{BatchID: batchID, Codes: codes}, nil
}

// List returns recently issued coupons for the admin view.
func (s *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	return s.coupons.List(ctx, 100)
}

// Stats aggregates coupon counters for the admin overview.
func (s *CouponService) Stats(ctx context.Context) (repository.CouponStats, error) {
	return s.coupons.Stats(ctx)
}

// Activation is the outcome of a successful redemption.
type Activation struct {
	Tier      models.Tier
	Credits   int
	Unlimited bool
	Expires   string
	Message   string
}

// Redeem activates a coupon for a device. The used flag flips via a
// compare-and-set inside the same transaction that writes the license, so a
// code redeems exactly once no matter how many devices race for it. Credits
// are additive on top of the device's normalized balance; unlimited and
// expiry come from the coupon.
func (s *CouponService) Redeem(ctx context.Context, deviceID, rawCode string) (*Activation, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" || !license.VerifyCode(code, s.cfg.CouponSecret) {
		return nil, ErrInvalidCoupon
	}

	defer s.locks.Lock(deviceID)()
	now := s.now()

	l, _, err := s.licenses.Ensure(ctx, license.NewLicense(deviceID, now))
	if err != nil {
		return nil, fmt.Errorf("ensure license: %w", err)
	}
	if l.Suspended {
		return nil, ErrSuspended
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrInvalidCoupon
	}
	if coupon.Used {
		return nil, ErrCouponUsed
	}

	license.Normalize(l, now)

	// Apply to a copy inside the transaction: WithTx may re-run the func on
	// transient contention, and the grant must not accumulate per attempt.
	var activated models.License
	err = database.WithTx(ctx, s.coupons.DB(), func(tx *sql.Tx) error {
		won, err := repository.MarkCouponUsedTx(ctx, tx, code, deviceID, now.Format(time.RFC3339))
		if err != nil {
			return err
		}
		if !won {
			return ErrCouponUsed
		}
		activated = *l
		license.ApplyCoupon(&activated, coupon, now)
		return repository.SaveLicenseTx(ctx, tx, &activated)
	})
	if err != nil {
		return nil, err
	}
	*l = activated

	name := "Pro"
	if class, ok := models.CouponClasses[coupon.Class]; ok {
		name = class.Name
	}

	s.log.Info("coupon redeemed", "device", deviceID, "class", coupon.Class, "code", code)
	return &Activation{
		Tier:      l.Tier,
		Credits:   l.Credits,
		Unlimited: l.Unlimited,
		Expires:   l.Expires,
		Message:   "License activated: " + name,
	}, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxkit/license-server/internal/config"
	"github.com/voxkit/license-server/internal/license"
	"github.com/voxkit/license-server/internal/models"
	"github.com/voxkit/license-server/internal/repository"
)

type LicenseService struct {
	cfg           config.Config
	log           *slog.Logger
	licenses      *repository.LicenseRepository
	usage         *repository.UsageRepository
	notifications *repository.NotificationRepository
	locks         *DeviceLocks
	now           func() time.Time
}

func NewLicenseService(
	cfg config.Config,
	log *slog.Logger,
	licenses *repository.LicenseRepository,
	usage *repository.UsageRepository,
	notifications *repository.NotificationRepository,
	locks *DeviceLocks,
) *LicenseService {
	return &LicenseService{
		cfg:           cfg,
		log:           log,
		licenses:      licenses,
		usage:         usage,
		notifications: notifications,
		locks:         locks,
		now:           time.Now,
	}
}

// Status is the entitlement snapshot returned to the client. Remaining is an
// integer; Unlimited tells the transport to render the unlimited sentinel
// instead.
type Status struct {
	Tier          models.Tier
	TierDisplay   string
	Remaining     int
	Unlimited     bool
	Expires       string
	DailyUsed     int
	DailyLimit    int
	Suspended     bool
	SuspendReason string
}

// ConsumeInput carries the usage-log fields of one generation.
type ConsumeInput struct {
	DeviceID string
	Text     string
	Voice    string
	ClientIP string
}

// Status returns the device's current entitlement, creating the free-tier
// record on first contact.
func (s *LicenseService) Status(ctx context.Context, deviceID string) (*Status, error) {
	defer s.locks.Lock(deviceID)()

	l, err := s.loadNormalized(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.buildStatus(l), nil
}

// Validate reports whether the device may generate right now, with a reason
// when it may not.
func (s *LicenseService) Validate(ctx context.Context, deviceID string) (bool, string, error) {
	defer s.locks.Lock(deviceID)()

	l, err := s.loadNormalized(ctx, deviceID)
	if err != nil {
		return false, "", err
	}
	ok, reason := license.CanConsume(l, s.cfg.FreeDailyLimit)
	return ok, reason, nil
}

// Consume records one generation and applies the deduction. It does not gate
// on the daily cap or the credit balance; Validate is the gate and the usage
// entry is written before the balance moves. Suspension does block it.
func (s *LicenseService) Consume(ctx context.Context, in ConsumeInput) (*Status, error) {
	defer s.locks.Lock(in.DeviceID)()

	l, err := s.loadNormalized(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if l.Suspended {
		return nil, ErrSuspended
	}

	entry := &models.UsageEntry{
		DeviceID:    in.DeviceID,
		TextPreview: preview(in.Text),
		TextLength:  len(in.Text),
		Voice:       in.Voice,
		IPAddress:   in.ClientIP,
	}
	if err := s.usage.Log(ctx, entry); err != nil {
		return nil, err
	}

	license.Consume(l)
	l.LastActive = s.now().Format(time.RFC3339)
	if err := s.licenses.Save(ctx, l); err != nil {
		return nil, err
	}

	return s.buildStatus(l), nil
}

// Bonus grants credits to a device and records a bonus notification.
func (s *LicenseService) Bonus(ctx context.Context, deviceID string, credits int, message string) error {
	if credits <= 0 {
		return ErrInvalidAmount
	}
	if message == "" {
		message = "You received bonus credits!"
	}

	defer s.locks.Lock(deviceID)()

	l, err := s.mustGetNormalized(ctx, deviceID)
	if err != nil {
		return err
	}

	license.ApplyBonus(l, credits)
	if err := s.licenses.Save(ctx, l); err != nil {
		return err
	}

	if err := s.notifications.Append(ctx, &models.Notification{
		DeviceID:      deviceID,
		Type:          models.NotificationBonus,
		Title:         "Bonus Credits",
		Message:       message,
		CreditsChange: credits,
	}); err != nil {
		return err
	}

	s.log.Info("bonus applied", "device", deviceID, "credits", credits)
	return nil
}

// Penalty removes credits, flooring at zero. The notification records the
// requested amount, not the clamped change.
func (s *LicenseService) Penalty(ctx context.Context, deviceID string, credits int, reason string) error {
	if credits <= 0 {
		return ErrInvalidAmount
	}
	if reason == "" {
		reason = "Credits deducted"
	}

	defer s.locks.Lock(deviceID)()

	l, err := s.mustGetNormalized(ctx, deviceID)
	if err != nil {
		return err
	}

	license.ApplyPenalty(l, credits)
	if err := s.licenses.Save(ctx, l); err != nil {
		return err
	}

	if err := s.notifications.Append(ctx, &models.Notification{
		DeviceID:      deviceID,
		Type:          models.NotificationPenalty,
		Title:         "Credits Deducted",
		Message:       reason,
		CreditsChange: -credits,
	}); err != nil {
		return err
	}

	s.log.Info("penalty applied", "device", deviceID, "credits", credits)
	return nil
}

// Suspend blocks consumption and activation for the device. Tier and balance
// are untouched; suspension is a pure gate.
func (s *LicenseService) Suspend(ctx context.Context, deviceID, reason string) error {
	defer s.locks.Lock(deviceID)()

	l, err := s.mustGetNormalized(ctx, deviceID)
	if err != nil {
		return err
	}

	l.Suspended = true
	l.SuspendReason = reason
	if err := s.licenses.Save(ctx, l); err != nil {
		return err
	}

	message := reason
	if message == "" {
		message = "Your account has been suspended."
	}
	if err := s.notifications.Append(ctx, &models.Notification{
		DeviceID: deviceID,
		Type:     models.NotificationSuspend,
		Title:    "Account Suspended",
		Message:  message,
	}); err != nil {
		return err
	}

	s.log.Info("device suspended", "device", deviceID, "reason", reason)
	return nil
}

func (s *LicenseService) Unsuspend(ctx context.Context, deviceID string) error {
	defer s.locks.Lock(deviceID)()

	l, err := s.mustGetNormalized(ctx, deviceID)
	if err != nil {
		return err
	}

	l.Suspended = false
	l.SuspendReason = ""
	if err := s.licenses.Save(ctx, l); err != nil {
		return err
	}

	if err := s.notifications.Append(ctx, &models.Notification{
		DeviceID: deviceID,
		Type:     models.NotificationUnsuspend,
		Title:    "Account Restored",
		Message:  "Your account has been restored.",
	}); err != nil {
		return err
	}

	s.log.Info("device unsuspended", "device", deviceID)
	return nil
}

// List returns every device record, most recently active first.
func (s *LicenseService) List(ctx context.Context) ([]models.License, error) {
	return s.licenses.List(ctx)
}

// Stats aggregates the device-side dashboard counters.
func (s *LicenseService) Stats(ctx context.Context) (repository.LicenseStats, error) {
	return s.licenses.Stats(ctx)
}

// DeviceDetail is the admin view of one device: the stored record as-is plus
// its recent activity.
type DeviceDetail struct {
	License       *models.License
	Usage         []models.UsageEntry
	Notifications []models.Notification
}

func (s *LicenseService) Detail(ctx context.Context, deviceID string) (*DeviceDetail, error) {
	l, err := s.licenses.GetByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrDeviceNotFound
	}
	usage, err := s.usage.ListRecent(ctx, deviceID, 50)
	if err != nil {
		return nil, err
	}
	notifications, err := s.notifications.ListRecent(ctx, deviceID, 20)
	if err != nil {
		return nil, err
	}
	return &DeviceDetail{License: l, Usage: usage, Notifications: notifications}, nil
}

// loadNormalized fetches or seeds the device record, applies the lazy
// maintenance steps, and persists them if anything changed. Must be called
// with the device lock held.
func (s *LicenseService) loadNormalized(ctx context.Context, deviceID string) (*models.License, error) {
	now := s.now()
	l, _, err := s.licenses.Ensure(ctx, license.NewLicense(deviceID, now))
	if err != nil {
		return nil, fmt.Errorf("ensure license: %w", err)
	}
	if license.Normalize(l, now) {
		if err := s.licenses.Save(ctx, l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// mustGetNormalized is loadNormalized for admin paths, which never create
// records for unknown devices.
func (s *LicenseService) mustGetNormalized(ctx context.Context, deviceID string) (*models.License, error) {
	l, err := s.licenses.GetByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrDeviceNotFound
	}
	if license.Normalize(l, s.now()) {
		if err := s.licenses.Save(ctx, l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (s *LicenseService) buildStatus(l *models.License) *Status {
	remaining, unlimited := license.Remaining(l, s.cfg.FreeDailyLimit)
	if l.Suspended {
		remaining = 0
	}
	return &Status{
		Tier:          l.Tier,
		TierDisplay:   license.TierDisplay(l),
		Remaining:     remaining,
		Unlimited:     unlimited,
		Expires:       l.Expires,
		DailyUsed:     l.DailyUsed,
		DailyLimit:    s.cfg.FreeDailyLimit,
		Suspended:     l.Suspended,
		SuspendReason: l.SuspendReason,
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= 100 {
		return text
	}
	return string(runes[:100]) + "..."
}

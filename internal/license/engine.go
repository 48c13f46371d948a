// Package license holds the entitlement decision logic. Every function here
// is pure state transition over an in-memory record: no storage, no clocks of
// its own. Callers load the record, apply a transition, and persist the
// result under whatever serialization they need.
package license

import (
	"time"

	"github.com/voxkit/license-server/internal/models"
)

// DateLayout is the ISO date format used for expiry and daily-reset fields.
const DateLayout = "2006-01-02"

// NewLicense seeds a free-tier record for a device seen for the first time.
func NewLicense(deviceID string, now time.Time) *models.License {
	return &models.License{
		DeviceID:   deviceID,
		Tier:       models.TierFree,
		DailyReset: now.Format(DateLayout),
		LastActive: now.Format(time.RFC3339),
	}
}

// Normalize applies the lazy maintenance steps: the once-per-day counter reset
// and the expiry demotion. It runs at the top of every entitlement-touching
// operation and is idempotent for a fixed now. Returns whether the record
// changed.
func Normalize(l *models.License, now time.Time) bool {
	changed := false
	today := now.Format(DateLayout)

	if l.DailyReset != today {
		l.DailyUsed = 0
		l.DailyReset = today
		changed = true
	}

	// ISO dates compare correctly as strings. A license expiring today is
	// still valid today; only a date in the past demotes.
	if l.Expires != "" && l.Expires < today {
		l.Tier = models.TierFree
		l.Credits = 0
		l.Unlimited = false
		l.Expires = ""
		changed = true
	}

	return changed
}

// Remaining reports how many generations the device has left. The bool is the
// unlimited sentinel. The free-tier value is clamped at zero for display; the
// clamp is advisory, the cap itself lives in CanConsume.
func Remaining(l *models.License, dailyLimit int) (int, bool) {
	if l.Unlimited {
		return 0, true
	}
	if l.Tier == models.TierPro {
		return l.Credits, false
	}
	left := dailyLimit - l.DailyUsed
	if left < 0 {
		left = 0
	}
	return left, false
}

// CanConsume reports whether a generation is permitted right now, with a
// human-readable reason when it is not.
func CanConsume(l *models.License, dailyLimit int) (bool, string) {
	if l.Suspended {
		reason := l.SuspendReason
		if reason == "" {
			reason = "Account suspended"
		}
		return false, reason
	}
	if l.Unlimited {
		return true, ""
	}
	if l.Tier == models.TierPro {
		if l.Credits > 0 {
			return true, ""
		}
		return false, "No credits remaining"
	}
	if l.DailyUsed < dailyLimit {
		return true, ""
	}
	return false, "Daily limit reached"
}

// Consume records one generation against the license. It does not gate: the
// caller validates first if it wants to block. TotalGenerations always ticks;
// the deduction branches are mutually exclusive, first match wins.
func Consume(l *models.License) {
	l.TotalGenerations++

	switch {
	case l.Unlimited:
		// No balance to touch.
	case l.Tier == models.TierPro && l.Credits > 0:
		l.Credits--
		if l.Credits == 0 {
			// Spending the last pro credit demotes immediately; the
			// record never lingers at pro with zero credits from this
			// path.
			l.Tier = models.TierFree
			l.Unlimited = false
			l.Expires = ""
		}
	default:
		// Free tier. Uncapped here; CanConsume is the ceiling.
		l.DailyUsed++
	}
}

// ApplyCoupon activates a coupon on the license. Credits accumulate on top of
// whatever balance is already there; unlimited and expiry are overwritten by
// the coupon's values. TotalGenerations is untouched.
func ApplyCoupon(l *models.License, c *models.Coupon, now time.Time) {
	l.Tier = models.TierPro
	l.Credits += c.Credits
	l.Unlimited = c.Unlimited
	l.Expires = now.AddDate(0, 0, c.Days).Format(DateLayout)
	l.CouponUsed = c.Code
}

// ApplyBonus grants credits and forces the pro tier. Unlimited and expiry are
// left alone, so a bonus on an unlimited device is inert until it expires.
func ApplyBonus(l *models.License, credits int) {
	l.Credits += credits
	l.Tier = models.TierPro
}

// ApplyPenalty removes credits, flooring at zero. Unlike Consume, draining
// the balance here does not demote the tier or touch unlimited/expiry.
func ApplyPenalty(l *models.License, credits int) {
	l.Credits -= credits
	if l.Credits < 0 {
		l.Credits = 0
	}
}

// TierDisplay derives the label shown to the client.
func TierDisplay(l *models.License) string {
	switch {
	case l.Tier != models.TierPro:
		return "Free"
	case l.Unlimited && l.Expires != "":
		return "Pro-UNLIMITED"
	case l.Unlimited:
		return "LIFETIME"
	default:
		return "Pro-Limited"
	}
}

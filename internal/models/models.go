package models

// Tier is the entitlement tier of a device. Pro covers both credit-limited and
// unlimited licenses; unlimited-ness is the separate Unlimited flag.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// NotificationType classifies admin-generated device notifications.
type NotificationType string

const (
	NotificationBonus     NotificationType = "bonus"
	NotificationPenalty   NotificationType = "penalty"
	NotificationSuspend   NotificationType = "suspend"
	NotificationUnsuspend NotificationType = "unsuspend"
)

// License is the per-device entitlement record. Dates (Expires, DailyReset)
// are ISO 2006-01-02 strings, empty when unset; timestamps are carried as the
// strings the store produced.
type License struct {
	DeviceID         string
	Tier             Tier
	Credits          int
	Unlimited        bool
	Expires          string
	DailyUsed        int
	DailyReset       string
	CouponUsed       string
	Suspended        bool
	SuspendReason    string
	TotalGenerations int64
	LastActive       string
	CreatedAt        string
	UpdatedAt        string
}

// Coupon is a single-use activation code. Class values are denormalized onto
// the row at issue time so redemption never depends on catalog changes.
type Coupon struct {
	Code      string
	Class     string
	Credits   int
	Days      int
	Unlimited bool
	BatchID   string
	Used      bool
	UsedBy    string
	UsedAt    string
	CreatedAt string
}

// Notification is an append-only per-device message delivered at most once.
type Notification struct {
	ID            int64
	DeviceID      string
	Type          NotificationType
	Title         string
	Message       string
	CreditsChange int
	Seen          bool
	CreatedAt     string
}

// UsageEntry is one consumption event, kept for analytics only.
type UsageEntry struct {
	ID          int64
	DeviceID    string
	TextPreview string
	TextLength  int
	Voice       string
	IPAddress   string
	CreatedAt   string
}

// CouponClass describes a redeemable bundle of credits, validity, and the
// unlimited flag.
type CouponClass struct {
	ID        string
	Credits   int
	Days      int
	Unlimited bool
	Name      string
}

// CouponClasses is the fixed catalog of issuable coupon classes.
var CouponClasses = map[string]CouponClass{
	"PRO30": {ID: "PRO30", Credits: 300, Days: 30, Name: "Pro 30 Days"},
	"PRO90": {ID: "PRO90", Credits: 1500, Days: 90, Name: "Pro 90 Days"},
	"UNL7":  {ID: "UNL7", Days: 7, Unlimited: true, Name: "Unlimited 7 Days"},
	"UNL30": {ID: "UNL30", Days: 30, Unlimited: true, Name: "Unlimited 30 Days"},
	"UNL90": {ID: "UNL90", Days: 90, Unlimited: true, Name: "Unlimited 90 Days"},
	"LIFE":  {ID: "LIFE", Days: 36500, Unlimited: true, Name: "Lifetime"},
}

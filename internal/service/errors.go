package service

import "errors"

// Sentinel outcomes surfaced to the API layer. None of these are retryable.
var (
	ErrInvalidCoupon      = errors.New("invalid coupon code")
	ErrCouponUsed         = errors.New("coupon already used")
	ErrInvalidCouponClass = errors.New("invalid coupon class")
	ErrSuspended          = errors.New("account is suspended")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrInvalidAmount      = errors.New("credits must be positive")
)

package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxkit/license-server/internal/license"
	"github.com/voxkit/license-server/internal/models"
)

func issueOne(t *testing.T, env *testEnv, classID string) string {
	t.Helper()
	res, err := env.couponSvc.Issue(context.Background(), classID, 1)
	require.NoError(t, err)
	require.Len(t, res.Codes, 1)
	return res.Codes[0]
}

func TestIssueCoupons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.couponSvc.Issue(ctx, "PRO30", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BatchID)
	require.Len(t, res.Codes, 5)

	for _, code := range res.Codes {
		assert.True(t, license.VerifyCode(code, "test-coupon-secret"))
		c, err := env.coupons.GetByCode(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "PRO30", c.Class)
		assert.Equal(t, 300, c.Credits)
		assert.Equal(t, 30, c.Days)
		assert.False(t, c.Used)
		assert.Equal(t, res.BatchID, c.BatchID)
	}

	stats, err := env.couponSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 0, stats.Used)
}

func TestIssueRejectsUnknownClass(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.couponSvc.Issue(context.Background(), "NOPE", 1)
	assert.ErrorIs(t, err, ErrInvalidCouponClass)
}

func TestIssueCapsBatchSize(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.couponSvc.Issue(context.Background(), "PRO30", 5000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRedeemActivatesLicense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := issueOne(t, env, "PRO30")

	act, err := env.couponSvc.Redeem(ctx, "dev-1", code)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, act.Tier)
	assert.Equal(t, 300, act.Credits)
	assert.False(t, act.Unlimited)
	assert.Equal(t, "2026-09-30", act.Expires)
	assert.Equal(t, "License activated: Pro 30 Days", act.Message)

	l := env.mustLicense(t, "dev-1")
	assert.Equal(t, models.TierPro, l.Tier)
	assert.Equal(t, 300, l.Credits)
	assert.Equal(t, code, l.CouponUsed)

	c, err := env.coupons.GetByCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, c.Used)
	assert.Equal(t, "dev-1", c.UsedBy)
	assert.NotEmpty(t, c.UsedAt)
}

func TestRedeemIsAdditive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.licenseSvc.Status(ctx, "dev-1")
	require.NoError(t, err)
	require.NoError(t, env.licenseSvc.Bonus(ctx, "dev-1", 50, ""))

	act, err := env.couponSvc.Redeem(ctx, "dev-1", issueOne(t, env, "PRO30"))
	require.NoError(t, err)
	assert.Equal(t, 350, act.Credits)
}

func TestRedeemUnlimitedClass(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	act, err := env.couponSvc.Redeem(ctx, "dev-1", issueOne(t, env, "UNL7"))
	require.NoError(t, err)
	assert.True(t, act.Unlimited)
	assert.Equal(t, "2026-09-07", act.Expires)

	st, err := env.licenseSvc.Status(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, st.Unlimited)
	assert.Equal(t, "Pro-UNLIMITED", st.TierDisplay)
}

func TestRedeemNormalizesInput(t *testing.T) {
	env := newTestEnv(t)
	code := issueOne(t, env, "PRO30")

	_, err := env.couponSvc.Redeem(context.Background(), "dev-1", "  "+strings.ToLower(code)+" ")
	require.NoError(t, err)
}

func TestRedeemRejectsBadCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.couponSvc.Redeem(ctx, "dev-1", "")
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	_, err = env.couponSvc.Redeem(ctx, "dev-1", "not-a-code")
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	// Well-formed and correctly signed, but never issued.
	phantom, err := license.GenerateCode("PRO30", "test-coupon-secret")
	require.NoError(t, err)
	_, err = env.couponSvc.Redeem(ctx, "dev-1", phantom)
	assert.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestRedeemTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := issueOne(t, env, "PRO30")

	_, err := env.couponSvc.Redeem(ctx, "dev-1", code)
	require.NoError(t, err)

	_, err = env.couponSvc.Redeem(ctx, "dev-2", code)
	assert.ErrorIs(t, err, ErrCouponUsed)

	// The loser got nothing.
	l := env.mustLicense(t, "dev-2")
	assert.Equal(t, models.TierFree, l.Tier)
	assert.Equal(t, 0, l.Credits)
}

func TestRedeemBlockedWhileSuspended(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := issueOne(t, env, "PRO30")

	_, err := env.licenseSvc.Status(ctx, "dev-1")
	require.NoError(t, err)
	require.NoError(t, env.licenseSvc.Suspend(ctx, "dev-1", "abuse"))

	_, err = env.couponSvc.Redeem(ctx, "dev-1", code)
	assert.ErrorIs(t, err, ErrSuspended)

	// The code survives for later.
	c, err := env.coupons.GetByCode(ctx, code)
	require.NoError(t, err)
	assert.False(t, c.Used)
}

func TestConcurrentRedeemHasSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := issueOne(t, env, "PRO90")

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.couponSvc.Redeem(ctx, deviceName(i), code)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrCouponUsed)
		}
	}
	assert.Equal(t, 1, winners)

	activated := 0
	licenses, err := env.licenseSvc.List(ctx)
	require.NoError(t, err)
	for _, l := range licenses {
		if l.Tier == models.TierPro {
			activated++
			assert.Equal(t, 1500, l.Credits)
		}
	}
	assert.Equal(t, 1, activated)
}

func deviceName(i int) string {
	return "racer-" + string(rune('a'+i))
}

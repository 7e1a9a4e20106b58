package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRewardCoupon_ExpirationAlwaysFlexible(t *testing.T) {
	rc := newTestReward(t, func(p *RewardCouponParams) {
		p.ValidityPeriodType = ValidityFixedDate
		p.ValidityPeriodDays = 14
	})

	assert.Equal(t, date(2023, 3, 24), rc.CalculateCouponExpirationDate(date(2023, 3, 10)))
}

func TestRewardCoupon_QualifiesForAutoGrant(t *testing.T) {
	minPrice := decimal.NewFromInt(20000)

	testCases := []struct {
		name     string
		grantYn  bool
		minPrice *decimal.Decimal
		amount   int64
		want     bool
	}{
		{"disabled", false, nil, 50000, false},
		{"enabled_without_minimum", true, nil, 1, true},
		{"below_minimum", true, &minPrice, 19999, false},
		{"at_minimum", true, &minPrice, 20000, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rc := newTestReward(t, func(p *RewardCouponParams) {
				p.CouponGrantYn = tc.grantYn
				p.CouponGrantMinPrice = tc.minPrice
			})

			assert.Equal(t, tc.want, rc.QualifiesForAutoGrant(decimal.NewFromInt(tc.amount)))
		})
	}
}

func TestRewardCoupon_GrantMinPriceIsCopied(t *testing.T) {
	minPrice := decimal.NewFromInt(20000)
	rc := newTestReward(t, func(p *RewardCouponParams) { p.CouponGrantMinPrice = &minPrice })

	minPrice = decimal.NewFromInt(1)
	got := rc.CouponGrantMinPrice()
	*got = decimal.NewFromInt(2)

	assert.True(t, decimal.NewFromInt(20000).Equal(*rc.CouponGrantMinPrice()))
}

func TestRewardCoupon_IsExpiringSoon(t *testing.T) {
	rc := newTestReward(t, func(p *RewardCouponParams) { p.ValidityPeriodDays = 10 })
	issued := date(2023, 3, 1) // expires 2023-03-11

	testCases := []struct {
		name      string
		now       time.Time
		threshold int
		want      bool
	}{
		{"well_before_threshold", date(2023, 3, 2), 3, false},
		{"at_threshold", date(2023, 3, 8), 3, true},
		{"one_day_left", date(2023, 3, 10).Add(20 * time.Hour), 3, true},
		{"expires_today", date(2023, 3, 11).Add(9 * time.Hour), 3, false},
		{"already_expired", date(2023, 3, 12), 3, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rc.IsExpiringSoon(issued, tc.threshold, tc.now))
		})
	}
}

func TestRewardCoupon_IsCouponValid(t *testing.T) {
	rc := newTestReward(t, func(p *RewardCouponParams) { p.ValidityPeriodDays = 10 })
	issued := date(2023, 3, 1)

	assert.True(t, rc.IsCouponValid(issued, date(2023, 3, 11).Add(23*time.Hour)))
	assert.False(t, rc.IsCouponValid(issued, date(2023, 3, 12)))
	assert.Equal(t, 0, rc.DaysUntilExpiration(issued, date(2023, 3, 11)))
	assert.Equal(t, -1, rc.DaysUntilExpiration(issued, date(2023, 3, 12)))
}

package promotion

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type RewardCouponParams struct {
	CouponParams
	CouponGrantYn       bool
	CouponGrantMinPrice *decimal.Decimal
}

// RewardCoupon is granted automatically after a qualifying payment. Its validity always
// runs from the issue date.
type RewardCoupon struct {
	CouponBase
	grantYn       bool
	grantMinPrice *decimal.Decimal
}

func NewRewardCoupon(p RewardCouponParams) (*RewardCoupon, error) {
	cb, err := newCouponBase(KindRewardCoupon, p.CouponParams)
	if err != nil {
		return nil, err
	}
	if p.CouponGrantMinPrice != nil && p.CouponGrantMinPrice.IsNegative() {
		return nil, fmt.Errorf("%w: grant minimum price must not be negative", ErrInvalidCouponQuantity)
	}

	rc := &RewardCoupon{CouponBase: cb, grantYn: p.CouponGrantYn}
	if p.CouponGrantMinPrice != nil {
		v := *p.CouponGrantMinPrice
		rc.grantMinPrice = &v
	}
	return rc, nil
}

func (r *RewardCoupon) CouponGrantYn() bool { return r.grantYn }

// CouponGrantMinPrice returns a copy of the grant threshold, or nil when none is set.
func (r *RewardCoupon) CouponGrantMinPrice() *decimal.Decimal {
	if r.grantMinPrice == nil {
		return nil
	}
	v := *r.grantMinPrice
	return &v
}

func (r *RewardCoupon) CalculateCouponExpirationDate(issueDate time.Time) time.Time {
	return issueDate.AddDate(0, 0, r.validityPeriodDays)
}

// QualifiesForAutoGrant reports whether a payment of amount earns the coupon.
func (r *RewardCoupon) QualifiesForAutoGrant(amount decimal.Decimal) bool {
	if !r.grantYn {
		return false
	}
	if r.grantMinPrice == nil {
		return true
	}
	return amount.GreaterThanOrEqual(*r.grantMinPrice)
}

// IsCouponValid reports whether a coupon issued on issueDate can still be used on now's calendar day.
// The coupon is usable for the whole expiration day, the same rule
// DownloadableCoupon.ValidateCouponForUse applies.
func (r *RewardCoupon) IsCouponValid(issueDate, now time.Time) bool {
	return !couponExpired(r.CalculateCouponExpirationDate(issueDate), now)
}

// DaysUntilExpiration counts calendar days from now to expiration; negative once expired.
func (r *RewardCoupon) DaysUntilExpiration(issueDate, now time.Time) int {
	expiresAt := dateOf(r.CalculateCouponExpirationDate(issueDate))
	today := dateOf(now.In(expiresAt.Location()))
	return int(math.Round(expiresAt.Sub(today).Hours() / 24))
}

// IsExpiringSoon is true for valid coupons expiring within thresholdDays, excluding those expiring today.
func (r *RewardCoupon) IsExpiringSoon(issueDate time.Time, thresholdDays int, now time.Time) bool {
	if !r.IsCouponValid(issueDate, now) {
		return false
	}
	days := r.DaysUntilExpiration(issueDate, now)
	return days > 0 && days <= thresholdDays
}

func (r *RewardCoupon) Redeem(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	return r.redeem(now, func() error { return r.ValidateForUse(amount) }, r.CalculateDiscount(amount))
}

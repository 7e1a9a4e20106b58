package promotion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidityPeriodType controls how a coupon's expiration date is derived.
type ValidityPeriodType string

const (
	// ValidityFixedDate coupons expire with the promotion.
	ValidityFixedDate ValidityPeriodType = "FIXED_DATE"
	// ValidityFlexibleDays coupons expire a number of days after being obtained.
	ValidityFlexibleDays ValidityPeriodType = "FLEXIBLE_DAYS"
	// ValidityFlexibleDate is a legacy alias of ValidityFlexibleDays.
	ValidityFlexibleDate ValidityPeriodType = "FLEXIBLE_DATE"
)

// IsFlexible reports whether expiration is computed relative to the date a coupon was obtained.
func (v ValidityPeriodType) IsFlexible() bool {
	return v == ValidityFlexibleDays || v == ValidityFlexibleDate
}

// Coupon is implemented by DownloadableCoupon and RewardCoupon.
type Coupon interface {
	Promotion

	CouponDiscountPrice() decimal.Decimal
	PurchasedCouponQuantity() int
	UsedCouponQuantity() int
	RemainingCouponQuantity() int
	ReceivedCouponQuantity() int
	ValidityPeriodType() ValidityPeriodType
	ValidityPeriodDays() int

	HasAvailableCoupons() bool
	MeetsMinimumPayment(amount decimal.Decimal) bool
	CalculateDiscount(amount decimal.Decimal) decimal.Decimal
	FinalPaymentAmount(amount decimal.Decimal) decimal.Decimal
	ValidateForUse(amount decimal.Decimal) error
	Redeem(amount decimal.Decimal, now time.Time) (decimal.Decimal, error)
	IncrementReceivedCouponQuantity(n int)

	// CalculateCouponExpirationDate derives expiration from the date the coupon was obtained.
	CalculateCouponExpirationDate(referenceDate time.Time) time.Time
}

// CouponParams carries the bookkeeping shared by coupon variants.
type CouponParams struct {
	BaseParams
	CouponDiscountPrice     decimal.Decimal
	PurchasedCouponQuantity int
	UsedCouponQuantity      int
	RemainingCouponQuantity int
	ReceivedCouponQuantity  int
	FullPaymentYn           bool
	FullPaymentMinPrice     decimal.Decimal
	ValidityPeriodType      ValidityPeriodType
	ValidityPeriodDays      int
}

// CouponBase implements the quantity and discount rules common to all coupons.
type CouponBase struct {
	Base
	discountPrice       decimal.Decimal
	purchasedQuantity   int
	usedQuantity        int
	remainingQuantity   int
	receivedQuantity    int
	fullPaymentYn       bool
	fullPaymentMinPrice decimal.Decimal
	validityPeriodType  ValidityPeriodType
	validityPeriodDays  int
}

func newCouponBase(kind Kind, p CouponParams) (CouponBase, error) {
	base, err := newBase(kind, p.BaseParams)
	if err != nil {
		return CouponBase{}, err
	}

	switch {
	case p.PurchasedCouponQuantity < 0, p.UsedCouponQuantity < 0, p.RemainingCouponQuantity < 0:
		return CouponBase{}, fmt.Errorf("%w: quantities must not be negative (purchased=%d used=%d remaining=%d)",
			ErrInvalidCouponQuantity, p.PurchasedCouponQuantity, p.UsedCouponQuantity, p.RemainingCouponQuantity)
	case p.UsedCouponQuantity > p.PurchasedCouponQuantity:
		return CouponBase{}, fmt.Errorf("%w: used %d exceeds purchased %d",
			ErrInvalidCouponQuantity, p.UsedCouponQuantity, p.PurchasedCouponQuantity)
	case p.RemainingCouponQuantity > p.PurchasedCouponQuantity:
		return CouponBase{}, fmt.Errorf("%w: remaining %d exceeds purchased %d",
			ErrInvalidCouponQuantity, p.RemainingCouponQuantity, p.PurchasedCouponQuantity)
	case p.ReceivedCouponQuantity < 0:
		return CouponBase{}, fmt.Errorf("%w: received quantity must not be negative", ErrInvalidCouponQuantity)
	case !p.CouponDiscountPrice.IsPositive():
		return CouponBase{}, fmt.Errorf("%w: discount price must be positive", ErrInvalidCouponQuantity)
	case p.FullPaymentMinPrice.IsNegative():
		return CouponBase{}, fmt.Errorf("%w: full payment minimum must not be negative", ErrInvalidCouponQuantity)
	case p.ValidityPeriodDays < 0:
		return CouponBase{}, fmt.Errorf("%w: validity period days must not be negative", ErrInvalidCouponQuantity)
	}

	return CouponBase{
		Base:                base,
		discountPrice:       p.CouponDiscountPrice,
		purchasedQuantity:   p.PurchasedCouponQuantity,
		usedQuantity:        p.UsedCouponQuantity,
		remainingQuantity:   p.RemainingCouponQuantity,
		receivedQuantity:    p.ReceivedCouponQuantity,
		fullPaymentYn:       p.FullPaymentYn,
		fullPaymentMinPrice: p.FullPaymentMinPrice,
		validityPeriodType:  p.ValidityPeriodType,
		validityPeriodDays:  p.ValidityPeriodDays,
	}, nil
}

func (c *CouponBase) CouponDiscountPrice() decimal.Decimal   { return c.discountPrice }
func (c *CouponBase) PurchasedCouponQuantity() int           { return c.purchasedQuantity }
func (c *CouponBase) UsedCouponQuantity() int                { return c.usedQuantity }
func (c *CouponBase) RemainingCouponQuantity() int           { return c.remainingQuantity }
func (c *CouponBase) ReceivedCouponQuantity() int            { return c.receivedQuantity }
func (c *CouponBase) FullPaymentYn() bool                    { return c.fullPaymentYn }
func (c *CouponBase) FullPaymentMinPrice() decimal.Decimal   { return c.fullPaymentMinPrice }
func (c *CouponBase) ValidityPeriodType() ValidityPeriodType { return c.validityPeriodType }
func (c *CouponBase) ValidityPeriodDays() int                { return c.validityPeriodDays }

func (c *CouponBase) HasAvailableCoupons() bool {
	return c.remainingQuantity > 0
}

// MeetsMinimumPayment gates on FullPaymentMinPrice only when full payment is required.
func (c *CouponBase) MeetsMinimumPayment(amount decimal.Decimal) bool {
	if !c.fullPaymentYn {
		return true
	}
	return amount.GreaterThanOrEqual(c.fullPaymentMinPrice)
}

// CalculateDiscount returns the coupon discount, never more than amount and zero when the minimum is not met.
func (c *CouponBase) CalculateDiscount(amount decimal.Decimal) decimal.Decimal {
	return c.discountFor(amount, c.MeetsMinimumPayment(amount))
}

func (c *CouponBase) FinalPaymentAmount(amount decimal.Decimal) decimal.Decimal {
	return finalPayment(amount, c.CalculateDiscount(amount))
}

// UsagePercentage is used/purchased*100, zero when nothing was purchased.
func (c *CouponBase) UsagePercentage() decimal.Decimal {
	return percentOf(decimal.NewFromInt(int64(c.usedQuantity)), decimal.NewFromInt(int64(c.purchasedQuantity)))
}

// IncrementReceivedCouponQuantity records issued coupons. Capacity is not re-checked.
func (c *CouponBase) IncrementReceivedCouponQuantity(n int) {
	c.receivedQuantity += n
}

func (c *CouponBase) ValidateForUse(amount decimal.Decimal) error {
	return c.validateUsage(amount, c.MeetsMinimumPayment(amount), c.fullPaymentMinPrice)
}

func (c *CouponBase) discountFor(amount decimal.Decimal, meetsMinimum bool) decimal.Decimal {
	if !meetsMinimum || !amount.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(c.discountPrice, amount)
}

func (c *CouponBase) validateUsage(amount decimal.Decimal, meetsMinimum bool, required decimal.Decimal) error {
	if !c.HasAvailableCoupons() {
		return fmt.Errorf("%w: no coupons remaining", ErrInsufficientBudget)
	}
	if !meetsMinimum {
		return &MinimumPaymentError{Required: required, Actual: amount}
	}
	return nil
}

// redeem consumes one coupon after validate succeeds and returns the discount granted.
// A zero discount leaves the coupon unused.
func (c *CouponBase) redeem(now time.Time, validate func() error, discount decimal.Decimal) (decimal.Decimal, error) {
	if err := c.EnsureActive(now); err != nil {
		return decimal.Zero, err
	}
	if err := validate(); err != nil {
		return decimal.Zero, err
	}
	if !discount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: discount is %s", ErrNoDiscount, discount.String())
	}
	c.usedQuantity++
	c.remainingQuantity--
	return discount, nil
}

// couponExpired reports whether now falls on a calendar day after expiresAt's,
// judged in expiresAt's location. A coupon stays usable for its whole expiration day.
func couponExpired(expiresAt, now time.Time) bool {
	return dateOf(now.In(expiresAt.Location())).After(dateOf(expiresAt))
}

func finalPayment(amount, discount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, amount.Sub(discount))
}

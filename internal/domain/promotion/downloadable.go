package promotion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DownloadableCouponParams struct {
	CouponParams
	DownloadableCouponQuantity int
	DownloadedCouponQuantity   int
	GeneralQuantityPerDay      int
	MultipleIssuedYn           bool
	MinimumPaymentPrice        decimal.Decimal
}

// DownloadableCoupon is claimed by customers ahead of purchase.
// Its payment gate is MinimumPaymentPrice; FullPaymentYn is ignored.
type DownloadableCoupon struct {
	CouponBase
	downloadableQuantity  int
	downloadedQuantity    int
	generalQuantityPerDay int
	multipleIssuedYn      bool
	minimumPaymentPrice   decimal.Decimal
}

func NewDownloadableCoupon(p DownloadableCouponParams) (*DownloadableCoupon, error) {
	cb, err := newCouponBase(KindDownloadableCoupon, p.CouponParams)
	if err != nil {
		return nil, err
	}

	switch {
	case p.DownloadableCouponQuantity < 0, p.DownloadedCouponQuantity < 0:
		return nil, fmt.Errorf("%w: download quantities must not be negative (downloadable=%d downloaded=%d)",
			ErrInvalidCouponQuantity, p.DownloadableCouponQuantity, p.DownloadedCouponQuantity)
	case p.DownloadedCouponQuantity > p.DownloadableCouponQuantity:
		return nil, fmt.Errorf("%w: downloaded %d exceeds downloadable %d",
			ErrInvalidCouponQuantity, p.DownloadedCouponQuantity, p.DownloadableCouponQuantity)
	case p.GeneralQuantityPerDay < 0:
		return nil, fmt.Errorf("%w: daily quantity must not be negative", ErrInvalidCouponQuantity)
	case p.MinimumPaymentPrice.IsNegative():
		return nil, fmt.Errorf("%w: minimum payment price must not be negative", ErrInvalidCouponQuantity)
	}

	return &DownloadableCoupon{
		CouponBase:            cb,
		downloadableQuantity:  p.DownloadableCouponQuantity,
		downloadedQuantity:    p.DownloadedCouponQuantity,
		generalQuantityPerDay: p.GeneralQuantityPerDay,
		multipleIssuedYn:      p.MultipleIssuedYn,
		minimumPaymentPrice:   p.MinimumPaymentPrice,
	}, nil
}

func (d *DownloadableCoupon) DownloadableCouponQuantity() int      { return d.downloadableQuantity }
func (d *DownloadableCoupon) DownloadedCouponQuantity() int        { return d.downloadedQuantity }
func (d *DownloadableCoupon) GeneralQuantityPerDay() int           { return d.generalQuantityPerDay }
func (d *DownloadableCoupon) MultipleIssuedYn() bool               { return d.multipleIssuedYn }
func (d *DownloadableCoupon) MinimumPaymentPrice() decimal.Decimal { return d.minimumPaymentPrice }

func (d *DownloadableCoupon) MeetsMinimumPayment(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(d.minimumPaymentPrice)
}

func (d *DownloadableCoupon) CalculateDiscount(amount decimal.Decimal) decimal.Decimal {
	return d.discountFor(amount, d.MeetsMinimumPayment(amount))
}

func (d *DownloadableCoupon) FinalPaymentAmount(amount decimal.Decimal) decimal.Decimal {
	return finalPayment(amount, d.CalculateDiscount(amount))
}

func (d *DownloadableCoupon) ValidateForUse(amount decimal.Decimal) error {
	return d.validateUsage(amount, d.MeetsMinimumPayment(amount), d.minimumPaymentPrice)
}

// CalculateCouponExpirationDate returns the promotion end date for fixed-date coupons,
// otherwise downloadDate plus the validity period.
func (d *DownloadableCoupon) CalculateCouponExpirationDate(downloadDate time.Time) time.Time {
	if d.validityPeriodType == ValidityFixedDate {
		return d.endDate
	}
	return downloadDate.AddDate(0, 0, d.validityPeriodDays)
}

// ValidateCouponForUse fails with ErrCouponExpired once currentDate is past the expiration
// calendar day, then checks stock and minimum payment. The coupon is usable for the whole
// expiration day, the same rule RewardCoupon.IsCouponValid applies.
func (d *DownloadableCoupon) ValidateCouponForUse(downloadDate time.Time, amount decimal.Decimal, currentDate time.Time) error {
	expiresAt := d.CalculateCouponExpirationDate(downloadDate)
	if couponExpired(expiresAt, currentDate) {
		return fmt.Errorf("%w: expired at %s", ErrCouponExpired, expiresAt.Format(time.DateOnly))
	}
	return d.ValidateForUse(amount)
}

func (d *DownloadableCoupon) Redeem(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	return d.redeem(now, func() error { return d.ValidateForUse(amount) }, d.CalculateDiscount(amount))
}

// Download issues one coupon to a customer.
func (d *DownloadableCoupon) Download(now time.Time) error {
	if err := d.EnsureActive(now); err != nil {
		return err
	}
	if d.downloadedQuantity >= d.downloadableQuantity {
		return fmt.Errorf("%w: all %d coupons downloaded", ErrInsufficientBudget, d.downloadableQuantity)
	}
	d.downloadedQuantity++
	d.IncrementReceivedCouponQuantity(1)
	return nil
}

// CalculateTotalDownloadableFromDaily is the daily quantity times the window length in days.
func (d *DownloadableCoupon) CalculateTotalDownloadableFromDaily() int {
	return d.generalQuantityPerDay * d.DurationInDays()
}

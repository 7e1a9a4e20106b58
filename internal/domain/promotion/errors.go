package promotion

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPeriod is returned when a scheduling window is not strictly ordered
	// or violates the reschedule rules.
	ErrInvalidPeriod = errors.New("invalid promotion period")

	// ErrPromotionNotActive is returned when an operation requires the promotion window to be open.
	ErrPromotionNotActive = errors.New("promotion is not active")

	// ErrInsufficientBudget is returned when the remaining point budget or coupon stock cannot cover a request.
	ErrInsufficientBudget = errors.New("insufficient promotion budget")

	// ErrMinimumPaymentNotMet is matched by every MinimumPaymentError.
	ErrMinimumPaymentNotMet = errors.New("minimum payment not met")

	// ErrInvalidPercentage is returned for percentages outside 0-100 or unsupported alarm thresholds.
	ErrInvalidPercentage = errors.New("invalid percentage")

	// ErrInvalidCouponQuantity is returned when coupon quantities are negative or inconsistent.
	ErrInvalidCouponQuantity = errors.New("invalid coupon quantity")

	// ErrCouponExpired is returned when a coupon is used after its expiration date.
	ErrCouponExpired = errors.New("coupon expired")

	// ErrNoDiscount is returned when a coupon would be consumed without reducing the payment.
	ErrNoDiscount = errors.New("coupon grants no discount")

	// ErrInvalidPointCalculation is returned when point budget parameters cannot produce a valid calculation.
	ErrInvalidPointCalculation = errors.New("invalid point calculation")

	ErrInvalidTitle            = errors.New("invalid promotion title")
	ErrInvalidStatusTransition = errors.New("invalid application status transition")
	ErrPaymentNotCompleted     = errors.New("payment not completed")
	ErrEmptyCancelReason       = errors.New("cancel reason is required")
	ErrAlreadyCancelled        = errors.New("application already cancelled")
	ErrInvalidEarlyEndDate     = errors.New("early end date must be in the future")
	ErrInvalidApplication      = errors.New("invalid promotion application")
	ErrInvalidOrder            = errors.New("invalid promotion order")
)

// MinimumPaymentError reports the amount a payment had to reach and the amount it actually was.
type MinimumPaymentError struct {
	Required decimal.Decimal
	Actual   decimal.Decimal
}

func (e *MinimumPaymentError) Error() string {
	return fmt.Sprintf("minimum payment not met: required %s, got %s", e.Required.String(), e.Actual.String())
}

// Is lets callers match the error with errors.Is(err, ErrMinimumPaymentNotMet).
func (e *MinimumPaymentError) Is(target error) bool {
	return target == ErrMinimumPaymentNotMet
}

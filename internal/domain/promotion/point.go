package promotion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SavingType selects how the point reward is computed.
type SavingType string

const (
	SavingFixedRate  SavingType = "FIXED_RATE"
	SavingFixedPoint SavingType = "FIXED_POINT"
)

// ClientLimitType selects which per-client counter is capped.
type ClientLimitType string

const (
	ClientLimitNone  ClientLimitType = "NONE"
	ClientLimitCount ClientLimitType = "COUNT"
	ClientLimitPoint ClientLimitType = "POINT"
)

// ClientLimit caps how often, or how many points, a single client may receive.
type ClientLimit struct {
	Type     ClientLimitType `json:"type"`
	MaxCount int             `json:"max_count"`
	MaxPoint decimal.Decimal `json:"max_point"`
}

type PointPromotionParams struct {
	BaseParams
	PromotionBudget     decimal.Decimal
	SavingType          SavingType
	SavingRate          decimal.Decimal
	SavingPoint         decimal.Decimal
	MaximumSavingPoint  decimal.Decimal
	MinimumPaymentPrice decimal.Decimal
	ClientLimit         ClientLimit
	UsedPoint           decimal.Decimal
	RemainingPoint      decimal.Decimal
}

// PointPromotion grants points on qualifying payments out of a fixed budget.
// Points are whole units: FIXED_RATE rewards are rounded down, so 10% of 15 earns 1 point
// and 10% of 5 earns none.
//
// usedPointPercentage and remainingPointPercentage are stored, not derived on read;
// they are refreshed only by applyBudget, the single mutation entry point.
type PointPromotion struct {
	Base
	budget                   decimal.Decimal
	savingType               SavingType
	savingRate               decimal.Decimal
	savingPoint              decimal.Decimal
	maximumSavingPoint       decimal.Decimal
	minimumPaymentPrice      decimal.Decimal
	clientLimit              ClientLimit
	usedPoint                decimal.Decimal
	remainingPoint           decimal.Decimal
	usedPointPercentage      decimal.Decimal
	remainingPointPercentage decimal.Decimal
}

// NewPointPromotion validates p and builds a point promotion. When both used and remaining
// points are zero the whole budget is treated as remaining.
func NewPointPromotion(p PointPromotionParams) (*PointPromotion, error) {
	base, err := newBase(KindPoint, p.BaseParams)
	if err != nil {
		return nil, err
	}

	if !p.PromotionBudget.IsPositive() {
		return nil, fmt.Errorf("%w: promotion budget must be positive", ErrInvalidPointCalculation)
	}
	switch p.SavingType {
	case SavingFixedRate:
		if p.SavingRate.IsNegative() || p.SavingRate.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: saving rate %s must be between 0 and 100", ErrInvalidPercentage, p.SavingRate)
		}
	case SavingFixedPoint:
		if p.SavingPoint.IsNegative() {
			return nil, fmt.Errorf("%w: saving point must not be negative", ErrInvalidPointCalculation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown saving type %q", ErrInvalidPointCalculation, p.SavingType)
	}
	if p.MaximumSavingPoint.IsNegative() || p.MinimumPaymentPrice.IsNegative() {
		return nil, fmt.Errorf("%w: caps must not be negative", ErrInvalidPointCalculation)
	}
	if err := validateClientLimit(p.ClientLimit); err != nil {
		return nil, err
	}

	used, remaining := p.UsedPoint, p.RemainingPoint
	if used.IsZero() && remaining.IsZero() {
		remaining = p.PromotionBudget
	}
	if used.IsNegative() || remaining.IsNegative() || !used.Add(remaining).Equal(p.PromotionBudget) {
		return nil, fmt.Errorf("%w: used %s + remaining %s must equal budget %s",
			ErrInvalidPointCalculation, used, remaining, p.PromotionBudget)
	}

	pp := &PointPromotion{
		Base:                base,
		budget:              p.PromotionBudget,
		savingType:          p.SavingType,
		savingRate:          p.SavingRate,
		savingPoint:         p.SavingPoint,
		maximumSavingPoint:  p.MaximumSavingPoint,
		minimumPaymentPrice: p.MinimumPaymentPrice,
		clientLimit:         p.ClientLimit,
	}
	pp.applyBudget(used, remaining)
	return pp, nil
}

func validateClientLimit(l ClientLimit) error {
	switch l.Type {
	case ClientLimitNone, "":
		return nil
	case ClientLimitCount:
		if l.MaxCount < 0 {
			return fmt.Errorf("%w: client count limit must not be negative", ErrInvalidPointCalculation)
		}
	case ClientLimitPoint:
		if l.MaxPoint.IsNegative() {
			return fmt.Errorf("%w: client point limit must not be negative", ErrInvalidPointCalculation)
		}
	default:
		return fmt.Errorf("%w: unknown client limit type %q", ErrInvalidPointCalculation, l.Type)
	}
	return nil
}

func (p *PointPromotion) PromotionBudget() decimal.Decimal          { return p.budget }
func (p *PointPromotion) SavingType() SavingType                    { return p.savingType }
func (p *PointPromotion) SavingRate() decimal.Decimal               { return p.savingRate }
func (p *PointPromotion) SavingPoint() decimal.Decimal              { return p.savingPoint }
func (p *PointPromotion) MaximumSavingPoint() decimal.Decimal       { return p.maximumSavingPoint }
func (p *PointPromotion) MinimumPaymentPrice() decimal.Decimal      { return p.minimumPaymentPrice }
func (p *PointPromotion) ClientLimit() ClientLimit                  { return p.clientLimit }
func (p *PointPromotion) UsedPoint() decimal.Decimal                { return p.usedPoint }
func (p *PointPromotion) RemainingPoint() decimal.Decimal           { return p.remainingPoint }
func (p *PointPromotion) UsedPointPercentage() decimal.Decimal      { return p.usedPointPercentage }
func (p *PointPromotion) RemainingPointPercentage() decimal.Decimal { return p.remainingPointPercentage }

func (p *PointPromotion) MeetsMinimumPayment(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(p.minimumPaymentPrice)
}

// CalculatePointReward computes the reward for amount: the rate or fixed value, capped first by
// MaximumSavingPoint (when positive) and then by the remaining budget.
// A FIXED_RATE reward is amount*rate/100 rounded down to a whole point.
func (p *PointPromotion) CalculatePointReward(amount decimal.Decimal) decimal.Decimal {
	if !p.MeetsMinimumPayment(amount) {
		return decimal.Zero
	}

	var reward decimal.Decimal
	switch p.savingType {
	case SavingFixedRate:
		reward = amount.Mul(p.savingRate).Div(hundred).Floor()
	case SavingFixedPoint:
		reward = p.savingPoint
	}

	if p.maximumSavingPoint.IsPositive() {
		reward = decimal.Min(reward, p.maximumSavingPoint)
	}
	reward = decimal.Min(reward, p.remainingPoint)
	return decimal.Max(reward, decimal.Zero)
}

// ApplyPointReward grants the reward for amount and moves it from remaining to used.
func (p *PointPromotion) ApplyPointReward(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if err := p.EnsureActive(now); err != nil {
		return decimal.Zero, err
	}
	if !p.MeetsMinimumPayment(amount) {
		return decimal.Zero, &MinimumPaymentError{Required: p.minimumPaymentPrice, Actual: amount}
	}

	reward := p.CalculatePointReward(amount)
	if !reward.IsPositive() || reward.GreaterThan(p.remainingPoint) {
		return decimal.Zero, fmt.Errorf("%w: remaining %s, reward %s", ErrInsufficientBudget, p.remainingPoint, reward)
	}

	p.applyBudget(p.usedPoint.Add(reward), p.remainingPoint.Sub(reward))
	return reward, nil
}

// CanApply mirrors the guards of ApplyPointReward without mutating state.
func (p *PointPromotion) CanApply(amount decimal.Decimal, date time.Time) bool {
	if !p.IsWithinValidPeriod(date) || !p.MeetsMinimumPayment(amount) {
		return false
	}
	reward := p.CalculatePointReward(amount)
	return reward.IsPositive() && reward.LessThanOrEqual(p.remainingPoint)
}

// CanUserApply checks the per-client limit. A client is blocked once a counter reaches its cap.
func (p *PointPromotion) CanUserApply(usageCount int, usedPoints decimal.Decimal) bool {
	switch p.clientLimit.Type {
	case ClientLimitCount:
		return usageCount < p.clientLimit.MaxCount
	case ClientLimitPoint:
		return usedPoints.LessThan(p.clientLimit.MaxPoint)
	default:
		return true
	}
}

// UsagePercentage returns the tracked used-point percentage.
func (p *PointPromotion) UsagePercentage() decimal.Decimal {
	return p.usedPointPercentage
}

func (p *PointPromotion) applyBudget(used, remaining decimal.Decimal) {
	p.usedPoint = used
	p.remainingPoint = remaining
	p.usedPointPercentage = percentOf(used, p.budget)
	p.remainingPointPercentage = percentOf(remaining, p.budget)
}

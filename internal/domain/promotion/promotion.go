// Package promotion contains the merchant promotion domain model: point promotions,
// downloadable and reward coupons, the payment order attached to an application and
// the application lifecycle that governs them.
//
// Entities are not safe for concurrent mutation. Callers serialize access per
// application (the service layer does so with a row lock per applySeq).
package promotion

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxTitleLength is the maximum number of characters allowed in a promotion title.
const MaxTitleLength = 300

// MaxRescheduleDays bounds how far in the future a rescheduled promotion may end.
const MaxRescheduleDays = 365

// Kind identifies the concrete promotion variant. The set is closed.
type Kind string

const (
	KindPoint              Kind = "POINT"
	KindDownloadableCoupon Kind = "DOWNLOADABLE_COUPON"
	KindRewardCoupon       Kind = "REWARD_COUPON"
)

// Kinds lists every supported variant.
var Kinds = []Kind{KindPoint, KindDownloadableCoupon, KindRewardCoupon}

// IsValid reports whether k is one of the supported variants.
func (k Kind) IsValid() bool {
	return slices.Contains(Kinds, k)
}

// PromotionType classifies a promotion for billing and reporting.
type PromotionType string

const (
	PromotionTypePoint  PromotionType = "POINT"
	PromotionTypeCoupon PromotionType = "COUPON"
)

// DistributionType describes how the benefit reaches the end customer.
type DistributionType string

const (
	DistributionTypeSaving   DistributionType = "SAVING"
	DistributionTypeDownload DistributionType = "DOWNLOAD"
	DistributionTypeReward   DistributionType = "REWARD"
)

// ProductType is the merchant product category the promotion targets.
type ProductType string

// AllowedAlarmThresholds are the exhaustion percentages a merchant may subscribe to.
var AllowedAlarmThresholds = []int{50, 75, 95}

// Image describes the promotion banner.
type Image struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

// ExposureProduct is a product on which the promotion is displayed, with its own display window.
type ExposureProduct struct {
	ProductID  string    `json:"product_id"`
	ExposureYn bool      `json:"exposure_yn"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// Promotion is implemented by PointPromotion, DownloadableCoupon and RewardCoupon only.
type Promotion interface {
	ID() string
	Kind() Kind
	Title() string
	StartDate() time.Time
	EndDate() time.Time
	PromotionType() PromotionType
	DistributionType() DistributionType
	ProductType() ProductType
	Image() Image
	ExhaustionAlarmYn() bool
	ExhaustionAlarmThresholds() []int
	ExposureProducts() []ExposureProduct

	IsWithinValidPeriod(date time.Time) bool
	HasStarted(date time.Time) bool
	HasEnded(date time.Time) bool
	EnsureActive(date time.Time) error
	UpdateTitle(title string) error
	UpdateImage(image Image)
	UpdateExhaustionAlarm(enabled bool, thresholds []int) error
	ReschedulePromotion(newStart, newEnd, today time.Time) error
	Equal(other Promotion) bool

	// UsagePercentage reports how much of the variant's budget or stock has been consumed.
	UsagePercentage() decimal.Decimal

	base() *Base
}

// BaseParams carries the attributes shared by every promotion variant.
type BaseParams struct {
	ID                        string
	Title                     string
	StartDate                 time.Time
	EndDate                   time.Time
	PromotionType             PromotionType
	DistributionType          DistributionType
	ProductType               ProductType
	Image                     Image
	ExhaustionAlarmYn         bool
	ExhaustionAlarmThresholds []int
	ExposureProducts          []ExposureProduct
}

// Base holds identity, scheduling and display metadata. It is embedded by every variant.
type Base struct {
	id                string
	kind              Kind
	title             string
	startDate         time.Time
	endDate           time.Time
	promotionType     PromotionType
	distributionType  DistributionType
	productType       ProductType
	image             Image
	exhaustionAlarmYn bool
	alarmThresholds   []int
	exposureProducts  []ExposureProduct
}

func newBase(kind Kind, p BaseParams) (Base, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Base{}, fmt.Errorf("%w: id is required", ErrInvalidApplication)
	}
	if err := validateTitle(p.Title); err != nil {
		return Base{}, err
	}
	if !p.StartDate.Before(p.EndDate) {
		return Base{}, fmt.Errorf("%w: start date %s must be before end date %s",
			ErrInvalidPeriod, p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
	}
	if err := validateThresholds(p.ExhaustionAlarmThresholds); err != nil {
		return Base{}, err
	}
	for _, ep := range p.ExposureProducts {
		if !ep.StartDate.Before(ep.EndDate) {
			return Base{}, fmt.Errorf("%w: exposure window of product %s", ErrInvalidPeriod, ep.ProductID)
		}
	}

	return Base{
		id:                p.ID,
		kind:              kind,
		title:             p.Title,
		startDate:         p.StartDate,
		endDate:           p.EndDate,
		promotionType:     p.PromotionType,
		distributionType:  p.DistributionType,
		productType:       p.ProductType,
		image:             p.Image,
		exhaustionAlarmYn: p.ExhaustionAlarmYn,
		alarmThresholds:   slices.Clone(p.ExhaustionAlarmThresholds),
		exposureProducts:  slices.Clone(p.ExposureProducts),
	}, nil
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("%w: title must not be blank", ErrInvalidTitle)
	}
	if len([]rune(title)) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTitle, MaxTitleLength)
	}
	return nil
}

func validateThresholds(thresholds []int) error {
	for _, t := range thresholds {
		if !slices.Contains(AllowedAlarmThresholds, t) {
			return fmt.Errorf("%w: alarm threshold %d not in %v", ErrInvalidPercentage, t, AllowedAlarmThresholds)
		}
	}
	return nil
}

func (b *Base) base() *Base { return b }

func (b *Base) ID() string                         { return b.id }
func (b *Base) Kind() Kind                         { return b.kind }
func (b *Base) Title() string                      { return b.title }
func (b *Base) StartDate() time.Time               { return b.startDate }
func (b *Base) EndDate() time.Time                 { return b.endDate }
func (b *Base) PromotionType() PromotionType       { return b.promotionType }
func (b *Base) DistributionType() DistributionType { return b.distributionType }
func (b *Base) ProductType() ProductType           { return b.productType }
func (b *Base) Image() Image                       { return b.image }
func (b *Base) ExhaustionAlarmYn() bool            { return b.exhaustionAlarmYn }

// ExhaustionAlarmThresholds returns a copy of the subscribed thresholds.
func (b *Base) ExhaustionAlarmThresholds() []int {
	return slices.Clone(b.alarmThresholds)
}

// ExposureProducts returns a copy of the exposure list. Mutating it does not affect the promotion.
func (b *Base) ExposureProducts() []ExposureProduct {
	return slices.Clone(b.exposureProducts)
}

// IsWithinValidPeriod reports whether date lies in [start, end], both ends inclusive.
func (b *Base) IsWithinValidPeriod(date time.Time) bool {
	return b.HasStarted(date) && !b.HasEnded(date)
}

// HasStarted reports whether date is at or after the start date.
func (b *Base) HasStarted(date time.Time) bool {
	return !date.Before(b.startDate)
}

// HasEnded reports whether date is strictly after the end date.
func (b *Base) HasEnded(date time.Time) bool {
	return date.After(b.endDate)
}

// EnsureActive fails with ErrPromotionNotActive when date is outside the promotion window.
func (b *Base) EnsureActive(date time.Time) error {
	if !b.IsWithinValidPeriod(date) {
		return fmt.Errorf("%w: %s outside %s ~ %s", ErrPromotionNotActive,
			date.Format(time.DateTime), b.startDate.Format(time.DateTime), b.endDate.Format(time.DateTime))
	}
	return nil
}

func (b *Base) UpdateTitle(title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	b.title = title
	return nil
}

func (b *Base) UpdateImage(image Image) {
	b.image = image
}

// UpdateExhaustionAlarm replaces the alarm flag and thresholds. Thresholds must be a subset of AllowedAlarmThresholds.
func (b *Base) UpdateExhaustionAlarm(enabled bool, thresholds []int) error {
	if err := validateThresholds(thresholds); err != nil {
		return err
	}
	b.exhaustionAlarmYn = enabled
	b.alarmThresholds = slices.Clone(thresholds)
	return nil
}

// ReschedulePromotion moves the window. All conditions are checked before either date changes:
// the new start must be after today, the new end at most MaxRescheduleDays after today,
// and the new start before the new end.
func (b *Base) ReschedulePromotion(newStart, newEnd, today time.Time) error {
	if !newStart.After(today) {
		return fmt.Errorf("%w: new start date must be after %s", ErrInvalidPeriod, today.Format(time.DateOnly))
	}
	limit := today.AddDate(0, 0, MaxRescheduleDays)
	if newEnd.After(limit) {
		return fmt.Errorf("%w: new end date must not be after %s", ErrInvalidPeriod, limit.Format(time.DateOnly))
	}
	if !newStart.Before(newEnd) {
		return fmt.Errorf("%w: new start date must be before new end date", ErrInvalidPeriod)
	}

	b.startDate = newStart
	b.endDate = newEnd
	return nil
}

// Equal compares promotions by identity only. A nil promotion, typed or not, is never equal.
func (b *Base) Equal(other Promotion) bool {
	if isNil(other) {
		return false
	}
	return b.id == other.ID()
}

// isNil catches interfaces holding a nil variant pointer, whose methods would dereference nil.
func isNil(p Promotion) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *PointPromotion:
		return v == nil
	case *DownloadableCoupon:
		return v == nil
	case *RewardCoupon:
		return v == nil
	case *CouponBase:
		return v == nil
	default:
		return false
	}
}

// DurationInDays is the promotion window length in days, counting any partial day as a full one.
func (b *Base) DurationInDays() int {
	hours := b.endDate.Sub(b.startDate).Hours()
	days := int(hours / 24)
	if float64(days)*24 < hours {
		days++
	}
	return days
}

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole*100 rounded to two decimal places, or zero when whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// dateOf truncates t to midnight in its own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

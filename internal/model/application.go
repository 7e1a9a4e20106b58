package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
)

// ErrInvalidDocument is returned when a document cannot be mapped to domain entities.
var ErrInvalidDocument = errors.New("invalid application document")

// ApplicationDocument is the wire and storage shape of a promotion application.
// It is the single mapping point between external payloads and domain entities.
type ApplicationDocument struct {
	ApplySeq             int64                          `json:"apply_seq"`
	Merchant             MerchantDocument               `json:"merchant"`
	ApplicationRouteType promotion.ApplicationRouteType `json:"application_route_type"`
	AppliedAt            time.Time                      `json:"applied_at"`
	ApplicationStatus    promotion.ApplicationStatus    `json:"application_status"`
	CancelReason         string                         `json:"cancel_reason,omitempty"`
	Promotion            PromotionDocument              `json:"promotion"`
	Order                OrderDocument                  `json:"order"`
	ReviewDetail         *promotion.ReviewDetail        `json:"review_detail,omitempty"`
	EarlyEndInfo         []promotion.EarlyEndInfo       `json:"early_end_info"`
	EarlyEndDate         *time.Time                     `json:"early_end_date,omitempty"`
}

type MerchantDocument struct {
	ID           string `json:"id" validate:"required,notblank,max=64"`
	Name         string `json:"name" validate:"required,notblank,max=255"`
	CountryCode  string `json:"country_code" validate:"required,len=2"`
	ManagerName  string `json:"manager_name" validate:"max=255"`
	ManagerEmail string `json:"manager_email" validate:"omitempty,email"`
}

// PromotionDocument carries the shared promotion attributes plus exactly one set of variant terms.
type PromotionDocument struct {
	ID                        string                      `json:"id"`
	Kind                      promotion.Kind              `json:"kind" validate:"required,oneof=POINT DOWNLOADABLE_COUPON REWARD_COUPON"`
	Title                     string                      `json:"title" validate:"required,notblank,max=300"`
	StartDate                 time.Time                   `json:"start_date" validate:"required"`
	EndDate                   time.Time                   `json:"end_date" validate:"required,gtfield=StartDate"`
	PromotionType             promotion.PromotionType     `json:"promotion_type" validate:"required,oneof=POINT COUPON"`
	DistributionType          promotion.DistributionType  `json:"distribution_type" validate:"required,oneof=SAVING DOWNLOAD REWARD"`
	ProductType               promotion.ProductType       `json:"product_type"`
	Image                     promotion.Image             `json:"image"`
	ExhaustionAlarmYn         bool                        `json:"exhaustion_alarm_yn"`
	ExhaustionAlarmThresholds []int                       `json:"exhaustion_alarm_thresholds" validate:"dive,oneof=50 75 95"`
	ExposureProducts          []promotion.ExposureProduct `json:"exposure_products"`
	Point                     *PointTerms                 `json:"point,omitempty" validate:"required_if=Kind POINT"`
	Coupon                    *CouponTerms                `json:"coupon,omitempty" validate:"required_unless=Kind POINT"`
	Downloadable              *DownloadableTerms          `json:"downloadable,omitempty" validate:"required_if=Kind DOWNLOADABLE_COUPON"`
	Reward                    *RewardTerms                `json:"reward,omitempty" validate:"required_if=Kind REWARD_COUPON"`
}

type PointTerms struct {
	PromotionBudget          decimal.Decimal       `json:"promotion_budget" validate:"gt=0"`
	SavingType               promotion.SavingType  `json:"saving_type" validate:"required,oneof=FIXED_RATE FIXED_POINT"`
	SavingRate               decimal.Decimal       `json:"saving_rate"`
	SavingPoint              decimal.Decimal       `json:"saving_point"`
	MaximumSavingPoint       decimal.Decimal       `json:"maximum_saving_point"`
	MinimumPaymentPrice      decimal.Decimal       `json:"minimum_payment_price"`
	ClientLimit              promotion.ClientLimit `json:"client_limit"`
	UsedPoint                decimal.Decimal       `json:"used_point"`
	RemainingPoint           decimal.Decimal       `json:"remaining_point"`
	UsedPointPercentage      decimal.Decimal       `json:"used_point_percentage"`
	RemainingPointPercentage decimal.Decimal       `json:"remaining_point_percentage"`
}

type CouponTerms struct {
	CouponDiscountPrice     decimal.Decimal              `json:"coupon_discount_price" validate:"gt=0"`
	PurchasedCouponQuantity int                          `json:"purchased_coupon_quantity" validate:"gte=0"`
	UsedCouponQuantity      int                          `json:"used_coupon_quantity" validate:"gte=0"`
	RemainingCouponQuantity int                          `json:"remaining_coupon_quantity" validate:"gte=0"`
	ReceivedCouponQuantity  int                          `json:"received_coupon_quantity" validate:"gte=0"`
	FullPaymentYn           bool                         `json:"full_payment_yn"`
	FullPaymentMinPrice     decimal.Decimal              `json:"full_payment_min_price"`
	ValidityPeriodType      promotion.ValidityPeriodType `json:"validity_period_type" validate:"required,oneof=FIXED_DATE FLEXIBLE_DAYS FLEXIBLE_DATE"`
	ValidityPeriodDays      int                          `json:"validity_period_days" validate:"gte=0"`
}

type DownloadableTerms struct {
	DownloadableCouponQuantity int             `json:"downloadable_coupon_quantity" validate:"gte=0"`
	DownloadedCouponQuantity   int             `json:"downloaded_coupon_quantity" validate:"gte=0"`
	GeneralQuantityPerDay      int             `json:"general_quantity_per_day" validate:"gte=0"`
	MultipleIssuedYn           bool            `json:"multiple_issued_yn"`
	MinimumPaymentPrice        decimal.Decimal `json:"minimum_payment_price"`
}

type RewardTerms struct {
	CouponGrantYn       bool             `json:"coupon_grant_yn"`
	CouponGrantMinPrice *decimal.Decimal `json:"coupon_grant_min_price,omitempty"`
}

type OrderDocument struct {
	OrderStatus       promotion.OrderStatus `json:"order_status" validate:"required"`
	PaymentType       string                `json:"payment_type"`
	PaymentDate       time.Time             `json:"payment_date"`
	FinalPaymentPrice decimal.Decimal       `json:"final_payment_price" validate:"gte=0"`
	PaymentInfo       promotion.PaymentInfo `json:"payment_info"`
}

// ToDomain builds the application aggregate. Every entity invariant is checked by the
// domain constructors, so a successful return is always a valid aggregate.
func (d *ApplicationDocument) ToDomain() (*promotion.Application, error) {
	promo, err := d.Promotion.ToDomain()
	if err != nil {
		return nil, err
	}
	order, err := d.Order.ToDomain()
	if err != nil {
		return nil, err
	}

	return promotion.NewApplication(promotion.ApplicationParams{
		ApplySeq: d.ApplySeq,
		Merchant: promotion.Merchant{
			ID:           d.Merchant.ID,
			Name:         d.Merchant.Name,
			CountryCode:  d.Merchant.CountryCode,
			ManagerName:  d.Merchant.ManagerName,
			ManagerEmail: d.Merchant.ManagerEmail,
		},
		ApplicationRouteType: d.ApplicationRouteType,
		AppliedAt:            d.AppliedAt,
		Status:               d.ApplicationStatus,
		CancelReason:         d.CancelReason,
		Promotion:            promo,
		Order:                order,
		ReviewDetail:         d.ReviewDetail,
		EarlyEndInfo:         d.EarlyEndInfo,
		EarlyEndDate:         d.EarlyEndDate,
	})
}

func (d *PromotionDocument) ToDomain() (promotion.Promotion, error) {
	base := promotion.BaseParams{
		ID:                        d.ID,
		Title:                     d.Title,
		StartDate:                 d.StartDate,
		EndDate:                   d.EndDate,
		PromotionType:             d.PromotionType,
		DistributionType:          d.DistributionType,
		ProductType:               d.ProductType,
		Image:                     d.Image,
		ExhaustionAlarmYn:         d.ExhaustionAlarmYn,
		ExhaustionAlarmThresholds: d.ExhaustionAlarmThresholds,
		ExposureProducts:          d.ExposureProducts,
	}

	switch d.Kind {
	case promotion.KindPoint:
		if d.Point == nil {
			return nil, fmt.Errorf("%w: point terms are required for %s", ErrInvalidDocument, d.Kind)
		}
		pp, err := promotion.NewPointPromotion(promotion.PointPromotionParams{
			BaseParams:          base,
			PromotionBudget:     d.Point.PromotionBudget,
			SavingType:          d.Point.SavingType,
			SavingRate:          d.Point.SavingRate,
			SavingPoint:         d.Point.SavingPoint,
			MaximumSavingPoint:  d.Point.MaximumSavingPoint,
			MinimumPaymentPrice: d.Point.MinimumPaymentPrice,
			ClientLimit:         d.Point.ClientLimit,
			UsedPoint:           d.Point.UsedPoint,
			RemainingPoint:      d.Point.RemainingPoint,
		})
		if err != nil {
			return nil, err
		}
		return pp, nil
	case promotion.KindDownloadableCoupon:
		if d.Coupon == nil || d.Downloadable == nil {
			return nil, fmt.Errorf("%w: coupon and downloadable terms are required for %s", ErrInvalidDocument, d.Kind)
		}
		dc, err := promotion.NewDownloadableCoupon(promotion.DownloadableCouponParams{
			CouponParams:               d.Coupon.params(base),
			DownloadableCouponQuantity: d.Downloadable.DownloadableCouponQuantity,
			DownloadedCouponQuantity:   d.Downloadable.DownloadedCouponQuantity,
			GeneralQuantityPerDay:      d.Downloadable.GeneralQuantityPerDay,
			MultipleIssuedYn:           d.Downloadable.MultipleIssuedYn,
			MinimumPaymentPrice:        d.Downloadable.MinimumPaymentPrice,
		})
		if err != nil {
			return nil, err
		}
		return dc, nil
	case promotion.KindRewardCoupon:
		if d.Coupon == nil {
			return nil, fmt.Errorf("%w: coupon terms are required for %s", ErrInvalidDocument, d.Kind)
		}
		rp := promotion.RewardCouponParams{CouponParams: d.Coupon.params(base)}
		if d.Reward != nil {
			rp.CouponGrantYn = d.Reward.CouponGrantYn
			rp.CouponGrantMinPrice = d.Reward.CouponGrantMinPrice
		}
		rc, err := promotion.NewRewardCoupon(rp)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("%w: unknown promotion kind %q", ErrInvalidDocument, d.Kind)
	}
}

func (c *CouponTerms) params(base promotion.BaseParams) promotion.CouponParams {
	return promotion.CouponParams{
		BaseParams:              base,
		CouponDiscountPrice:     c.CouponDiscountPrice,
		PurchasedCouponQuantity: c.PurchasedCouponQuantity,
		UsedCouponQuantity:      c.UsedCouponQuantity,
		RemainingCouponQuantity: c.RemainingCouponQuantity,
		ReceivedCouponQuantity:  c.ReceivedCouponQuantity,
		FullPaymentYn:           c.FullPaymentYn,
		FullPaymentMinPrice:     c.FullPaymentMinPrice,
		ValidityPeriodType:      c.ValidityPeriodType,
		ValidityPeriodDays:      c.ValidityPeriodDays,
	}
}

func (o *OrderDocument) ToDomain() (*promotion.Order, error) {
	return promotion.NewOrder(promotion.OrderParams{
		OrderStatus:       o.OrderStatus,
		PaymentType:       o.PaymentType,
		PaymentDate:       o.PaymentDate,
		FinalPaymentPrice: o.FinalPaymentPrice,
		PaymentInfo:       o.PaymentInfo,
	})
}

// NewApplicationDocument captures the full state of app.
func NewApplicationDocument(app *promotion.Application) *ApplicationDocument {
	m := app.Merchant()
	order := app.Order()
	earlyEnds := app.EarlyEndInfo()
	if earlyEnds == nil {
		earlyEnds = []promotion.EarlyEndInfo{}
	}

	return &ApplicationDocument{
		ApplySeq: app.ApplySeq(),
		Merchant: MerchantDocument{
			ID:           m.ID,
			Name:         m.Name,
			CountryCode:  m.CountryCode,
			ManagerName:  m.ManagerName,
			ManagerEmail: m.ManagerEmail,
		},
		ApplicationRouteType: app.ApplicationRouteType(),
		AppliedAt:            app.AppliedAt(),
		ApplicationStatus:    app.Status(),
		CancelReason:         app.CancelReason(),
		Promotion:            NewPromotionDocument(app.Promotion()),
		Order: OrderDocument{
			OrderStatus:       order.OrderStatus(),
			PaymentType:       order.PaymentType(),
			PaymentDate:       order.PaymentDate(),
			FinalPaymentPrice: order.FinalPaymentPrice(),
			PaymentInfo:       order.PaymentInfo(),
		},
		ReviewDetail: app.ReviewDetail(),
		EarlyEndInfo: earlyEnds,
		EarlyEndDate: app.EarlyEndDate(),
	}
}

func NewPromotionDocument(p promotion.Promotion) PromotionDocument {
	doc := PromotionDocument{
		ID:                        p.ID(),
		Kind:                      p.Kind(),
		Title:                     p.Title(),
		StartDate:                 p.StartDate(),
		EndDate:                   p.EndDate(),
		PromotionType:             p.PromotionType(),
		DistributionType:          p.DistributionType(),
		ProductType:               p.ProductType(),
		Image:                     p.Image(),
		ExhaustionAlarmYn:         p.ExhaustionAlarmYn(),
		ExhaustionAlarmThresholds: p.ExhaustionAlarmThresholds(),
		ExposureProducts:          p.ExposureProducts(),
	}

	switch v := p.(type) {
	case *promotion.PointPromotion:
		doc.Point = &PointTerms{
			PromotionBudget:          v.PromotionBudget(),
			SavingType:               v.SavingType(),
			SavingRate:               v.SavingRate(),
			SavingPoint:              v.SavingPoint(),
			MaximumSavingPoint:       v.MaximumSavingPoint(),
			MinimumPaymentPrice:      v.MinimumPaymentPrice(),
			ClientLimit:              v.ClientLimit(),
			UsedPoint:                v.UsedPoint(),
			RemainingPoint:           v.RemainingPoint(),
			UsedPointPercentage:      v.UsedPointPercentage(),
			RemainingPointPercentage: v.RemainingPointPercentage(),
		}
	case *promotion.DownloadableCoupon:
		doc.Coupon = newCouponTerms(v, v.FullPaymentYn(), v.FullPaymentMinPrice())
		doc.Downloadable = &DownloadableTerms{
			DownloadableCouponQuantity: v.DownloadableCouponQuantity(),
			DownloadedCouponQuantity:   v.DownloadedCouponQuantity(),
			GeneralQuantityPerDay:      v.GeneralQuantityPerDay(),
			MultipleIssuedYn:           v.MultipleIssuedYn(),
			MinimumPaymentPrice:        v.MinimumPaymentPrice(),
		}
	case *promotion.RewardCoupon:
		doc.Coupon = newCouponTerms(v, v.FullPaymentYn(), v.FullPaymentMinPrice())
		doc.Reward = &RewardTerms{
			CouponGrantYn:       v.CouponGrantYn(),
			CouponGrantMinPrice: v.CouponGrantMinPrice(),
		}
	}
	return doc
}

func newCouponTerms(c promotion.Coupon, fullPaymentYn bool, fullPaymentMinPrice decimal.Decimal) *CouponTerms {
	return &CouponTerms{
		CouponDiscountPrice:     c.CouponDiscountPrice(),
		PurchasedCouponQuantity: c.PurchasedCouponQuantity(),
		UsedCouponQuantity:      c.UsedCouponQuantity(),
		RemainingCouponQuantity: c.RemainingCouponQuantity(),
		ReceivedCouponQuantity:  c.ReceivedCouponQuantity(),
		FullPaymentYn:           fullPaymentYn,
		FullPaymentMinPrice:     fullPaymentMinPrice,
		ValidityPeriodType:      c.ValidityPeriodType(),
		ValidityPeriodDays:      c.ValidityPeriodDays(),
	}
}

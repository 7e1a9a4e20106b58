package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
)

// CreateApplicationRequest is the DTO for submitting a new promotion application.
type CreateApplicationRequest struct {
	Merchant             MerchantDocument               `json:"merchant" validate:"required"`
	ApplicationRouteType promotion.ApplicationRouteType `json:"application_route_type" validate:"required,oneof=MERCHANT_CENTER ADMIN SALES_AGENT"`
	Promotion            PromotionDocument              `json:"promotion" validate:"required"`
	Order                OrderDocument                  `json:"order" validate:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

type EarlyEndRequest struct {
	Reason      string    `json:"reason" validate:"required,notblank,max=500"`
	RequestedBy string    `json:"requested_by" validate:"required,notblank,max=255"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

type RescheduleRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,notblank,max=300"`
}

type ReviewRequest struct {
	Reviewer string `json:"reviewer" validate:"required,notblank,max=255"`
	Comment  string `json:"comment" validate:"max=2000"`
}

// PointRewardRequest asks to grant points for a payment amount.
type PointRewardRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

// ApplicationResponse is the API view of an application with derived fields.
type ApplicationResponse struct {
	ApplicationDocument
	UsagePercentage decimal.Decimal `json:"usage_percentage"`
	Active          bool            `json:"active"`
	Consistent      bool            `json:"consistent"`
}

type CreateApplicationResponse struct {
	ApplySeq int64 `json:"apply_seq"`
}

type PointRewardResponse struct {
	GrantedPoint        decimal.Decimal `json:"granted_point"`
	UsedPoint           decimal.Decimal `json:"used_point"`
	RemainingPoint      decimal.Decimal `json:"remaining_point"`
	UsedPointPercentage decimal.Decimal `json:"used_point_percentage"`
}

// QuoteResponse previews what a payment of Amount would yield without mutating anything.
type QuoteResponse struct {
	Kind               promotion.Kind   `json:"kind"`
	Amount             decimal.Decimal  `json:"amount"`
	Discount           *decimal.Decimal `json:"discount,omitempty"`
	FinalPaymentAmount *decimal.Decimal `json:"final_payment_amount,omitempty"`
	PointReward        *decimal.Decimal `json:"point_reward,omitempty"`
	Applicable         bool             `json:"applicable"`
}

// NewApplicationResponse renders app as seen at now.
func NewApplicationResponse(app *promotion.Application, now time.Time) *ApplicationResponse {
	return &ApplicationResponse{
		ApplicationDocument: *NewApplicationDocument(app),
		UsagePercentage:     app.Promotion().UsagePercentage(),
		Active:              app.IsActive(now),
		Consistent:          app.ValidateConsistency(),
	}
}

type ExhaustionAlarmRequest struct {
	Enabled    bool  `json:"enabled"`
	Thresholds []int `json:"thresholds" validate:"dive,oneof=50 75 95"`
}

// CouponRedemptionRequest asks to consume one coupon against a payment amount.
type CouponRedemptionRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type ImageRequest struct {
	URL      string `json:"url" validate:"required,url,max=2048"`
	FileName string `json:"file_name" validate:"max=255"`
}

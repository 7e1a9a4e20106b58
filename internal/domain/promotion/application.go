package promotion

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ApplicationStatus is the lifecycle state of a promotion application.
type ApplicationStatus string

const (
	StatusApplying  ApplicationStatus = "APPLYING"
	StatusInService ApplicationStatus = "IN_SERVICE"
	StatusCancelled ApplicationStatus = "CANCELLED"
	StatusCompleted ApplicationStatus = "COMPLETED"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case StatusApplying, StatusInService, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// ApplicationRouteType records where the merchant submitted the application from.
type ApplicationRouteType string

const (
	RouteMerchantCenter ApplicationRouteType = "MERCHANT_CENTER"
	RouteAdmin          ApplicationRouteType = "ADMIN"
	RouteSalesAgent     ApplicationRouteType = "SALES_AGENT"
)

// Merchant identifies the applicant.
type Merchant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CountryCode  string `json:"country_code"`
	ManagerName  string `json:"manager_name"`
	ManagerEmail string `json:"manager_email"`
}

// ReviewDetail is the outcome of an operator review.
type ReviewDetail struct {
	Reviewer   string    `json:"reviewer"`
	Comment    string    `json:"comment"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// EarlyEndInfo is one early termination request.
type EarlyEndInfo struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
	EndDate     time.Time `json:"end_date"`
}

type ApplicationParams struct {
	ApplySeq             int64
	Merchant             Merchant
	ApplicationRouteType ApplicationRouteType
	AppliedAt            time.Time
	Status               ApplicationStatus
	CancelReason         string
	Promotion            Promotion
	Order                *Order
	ReviewDetail         *ReviewDetail
	EarlyEndInfo         []EarlyEndInfo
	EarlyEndDate         *time.Time
}

// Application is the aggregate root: it owns one promotion variant and one order and
// governs the APPLYING -> IN_SERVICE -> COMPLETED lifecycle. CANCELLED is reachable from
// every other state and is final.
type Application struct {
	applySeq     int64
	merchant     Merchant
	routeType    ApplicationRouteType
	appliedAt    time.Time
	status       ApplicationStatus
	cancelReason string
	promotion    Promotion
	order        *Order
	reviewDetail *ReviewDetail
	earlyEnds    []EarlyEndInfo
	earlyEndDate *time.Time
}

// NewApplication builds an application. An empty status defaults to APPLYING.
func NewApplication(p ApplicationParams) (*Application, error) {
	if p.Promotion == nil {
		return nil, fmt.Errorf("%w: promotion is required", ErrInvalidApplication)
	}
	if p.Order == nil {
		return nil, fmt.Errorf("%w: order is required", ErrInvalidApplication)
	}
	status := p.Status
	if status == "" {
		status = StatusApplying
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidApplication, p.Status)
	}

	app := &Application{
		applySeq:     p.ApplySeq,
		merchant:     p.Merchant,
		routeType:    p.ApplicationRouteType,
		appliedAt:    p.AppliedAt,
		status:       status,
		cancelReason: p.CancelReason,
		promotion:    p.Promotion,
		order:        p.Order,
		earlyEnds:    slices.Clone(p.EarlyEndInfo),
	}
	if p.ReviewDetail != nil {
		rd := *p.ReviewDetail
		app.reviewDetail = &rd
	}
	if p.EarlyEndDate != nil {
		d := *p.EarlyEndDate
		app.earlyEndDate = &d
	}
	return app, nil
}

func (a *Application) ApplySeq() int64                            { return a.applySeq }
func (a *Application) Merchant() Merchant                         { return a.merchant }
func (a *Application) ApplicationRouteType() ApplicationRouteType { return a.routeType }
func (a *Application) AppliedAt() time.Time                       { return a.appliedAt }
func (a *Application) Status() ApplicationStatus                  { return a.status }
func (a *Application) CancelReason() string                       { return a.cancelReason }
func (a *Application) Order() *Order                              { return a.order }

// Promotion returns the live promotion variant, not a copy. Edits go through the
// Application methods below, and benefit operations on the variant must run inside
// the unit of work that persists the application.
func (a *Application) Promotion() Promotion { return a.promotion }

func (a *Application) UpdateTitle(title string) error {
	return a.promotion.UpdateTitle(title)
}

func (a *Application) UpdateImage(image Image) {
	a.promotion.UpdateImage(image)
}

func (a *Application) UpdateExhaustionAlarm(enabled bool, thresholds []int) error {
	return a.promotion.UpdateExhaustionAlarm(enabled, thresholds)
}

// ReschedulePromotion moves the promotion window. See Base.ReschedulePromotion for the rules.
func (a *Application) ReschedulePromotion(newStart, newEnd, today time.Time) error {
	return a.promotion.ReschedulePromotion(newStart, newEnd, today)
}

// AssignApplySeq sets the identity allocated by the store on first save.
func (a *Application) AssignApplySeq(seq int64) {
	a.applySeq = seq
}

func (a *Application) ReviewDetail() *ReviewDetail {
	if a.reviewDetail == nil {
		return nil
	}
	rd := *a.reviewDetail
	return &rd
}

// EarlyEndInfo returns a copy of the early-end history.
func (a *Application) EarlyEndInfo() []EarlyEndInfo {
	return slices.Clone(a.earlyEnds)
}

func (a *Application) EarlyEndDate() *time.Time {
	if a.earlyEndDate == nil {
		return nil
	}
	d := *a.earlyEndDate
	return &d
}

// Approve moves an APPLYING application with a completed payment into service.
func (a *Application) Approve() error {
	if a.status != StatusApplying {
		return fmt.Errorf("%w: cannot approve from %s", ErrInvalidStatusTransition, a.status)
	}
	if !a.order.IsPaymentCompleted() {
		return fmt.Errorf("%w: order status is %s", ErrPaymentNotCompleted, a.order.OrderStatus())
	}
	a.status = StatusInService
	return nil
}

func (a *Application) Complete() error {
	if a.status != StatusInService {
		return fmt.Errorf("%w: cannot complete from %s", ErrInvalidStatusTransition, a.status)
	}
	a.status = StatusCompleted
	return nil
}

func (a *Application) Cancel(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyCancelReason
	}
	if a.status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	a.status = StatusCancelled
	a.cancelReason = reason
	return nil
}

// RequestEarlyEnd records an early termination of an in-service promotion. date must be after now.
func (a *Application) RequestEarlyEnd(info EarlyEndInfo, date, now time.Time) error {
	if a.status != StatusInService {
		return fmt.Errorf("%w: early end requires %s, got %s", ErrInvalidStatusTransition, StatusInService, a.status)
	}
	if !date.After(now) {
		return fmt.Errorf("%w: %s", ErrInvalidEarlyEndDate, date.Format(time.DateTime))
	}
	info.EndDate = date
	a.earlyEnds = append(a.earlyEnds, info)
	a.earlyEndDate = &date
	return nil
}

func (a *Application) RecordReview(detail ReviewDetail) {
	a.reviewDetail = &detail
}

// IsActive is true while in service and date is inside the promotion window.
func (a *Application) IsActive(date time.Time) bool {
	return a.status == StatusInService && a.promotion.IsWithinValidPeriod(date)
}

// ValidateConsistency reports whether the promotion's classification matches what was paid for.
// A false result indicates upstream data corruption.
func (a *Application) ValidateConsistency() bool {
	info := a.order.PaymentInfo()
	return a.promotion.PromotionType() == info.PromotionType &&
		a.promotion.DistributionType() == info.DistributionType
}

// ApplicationRepository persists fully materialized applications.
type ApplicationRepository interface {
	Save(ctx context.Context, app *Application) error
	FindByID(ctx context.Context, applySeq int64) (*Application, error)
	FindAll(ctx context.Context) ([]*Application, error)
	Delete(ctx context.Context, applySeq int64) error
}

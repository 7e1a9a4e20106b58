package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
	"github.com/fairyhunter13/merchant-promotion-system/internal/model"
	"github.com/fairyhunter13/merchant-promotion-system/pkg/database"
)

// ApplicationRepositoryInterface defines the interface for application data access.
type ApplicationRepositoryInterface interface {
	Save(ctx context.Context, app *promotion.Application) error
	FindByID(ctx context.Context, applySeq int64) (*promotion.Application, error)
	FindAll(ctx context.Context) ([]*promotion.Application, error)
	Delete(ctx context.Context, applySeq int64) error
	FindByIDForUpdate(ctx context.Context, tx database.TxQuerier, applySeq int64) (*promotion.Application, error)
	Update(ctx context.Context, tx database.TxQuerier, app *promotion.Application) error
}

// ApplicationCacheInterface defines the read-through cache used for application lookups.
// Get returns nil, nil on a miss and ErrApplicationNotFound for a deleted application.
// Set overwrites the entry; Fill stores only when no entry exists.
type ApplicationCacheInterface interface {
	Get(ctx context.Context, applySeq int64) (*promotion.Application, error)
	Set(ctx context.Context, app *promotion.Application) error
	Fill(ctx context.Context, app *promotion.Application) (bool, error)
	Invalidate(ctx context.Context, applySeq int64) error
	MarkDeleted(ctx context.Context, applySeq int64) error
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ApplicationService provides business logic for promotion applications.
// Every mutation runs in its own transaction holding the application's row lock,
// so at most one mutation per applySeq is in flight.
type ApplicationService struct {
	pool  TxBeginner
	repo  ApplicationRepositoryInterface
	cache ApplicationCacheInterface
	now   func() time.Time
}

// NewApplicationService creates a new ApplicationService. cache may be nil.
func NewApplicationService(pool *pgxpool.Pool, repo ApplicationRepositoryInterface, cache ApplicationCacheInterface) *ApplicationService {
	return &ApplicationService{pool: pool, repo: repo, cache: cache, now: time.Now}
}

// NewApplicationServiceWithTxBeginner creates an ApplicationService with a custom TxBeginner and clock.
// Primarily used for testing.
func NewApplicationServiceWithTxBeginner(pool TxBeginner, repo ApplicationRepositoryInterface, cache ApplicationCacheInterface, now func() time.Time) *ApplicationService {
	if now == nil {
		now = time.Now
	}
	return &ApplicationService{pool: pool, repo: repo, cache: cache, now: now}
}

// Now returns the service clock.
func (s *ApplicationService) Now() time.Time {
	return s.now()
}

// Create builds a new APPLYING application from the request and stores it.
// Returns ErrInconsistentApplication when the payment was made for a different promotion classification.
func (s *ApplicationService) Create(ctx context.Context, req *model.CreateApplicationRequest) (int64, error) {
	if req == nil {
		return 0, ErrInvalidRequest
	}

	promo := req.Promotion
	if promo.ID == "" {
		promo.ID = uuid.NewString()
	}
	doc := &model.ApplicationDocument{
		Merchant:             req.Merchant,
		ApplicationRouteType: req.ApplicationRouteType,
		AppliedAt:            s.now(),
		ApplicationStatus:    promotion.StatusApplying,
		Promotion:            promo,
		Order:                req.Order,
	}

	app, err := doc.ToDomain()
	if err != nil {
		return 0, err
	}
	if !app.ValidateConsistency() {
		info := app.Order().PaymentInfo()
		log.Warn().
			Str("promotion_id", promo.ID).
			Str("promotion_type", string(app.Promotion().PromotionType())).
			Str("paid_promotion_type", string(info.PromotionType)).
			Str("distribution_type", string(app.Promotion().DistributionType())).
			Str("paid_distribution_type", string(info.DistributionType)).
			Msg("rejected application with inconsistent payment info")
		return 0, ErrInconsistentApplication
	}

	if err := s.repo.Save(ctx, app); err != nil {
		if errors.Is(err, ErrApplicationExists) {
			return 0, ErrApplicationExists
		}
		return 0, fmt.Errorf("save application: %w", err)
	}

	log.Info().
		Int64("apply_seq", app.ApplySeq()).
		Str("promotion_id", promo.ID).
		Str("kind", string(promo.Kind)).
		Str("merchant_id", req.Merchant.ID).
		Msg("application created")
	return app.ApplySeq(), nil
}

// Get retrieves an application, reading through the cache when one is configured.
// Returns ErrApplicationNotFound if the application doesn't exist.
func (s *ApplicationService) Get(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	if s.cache != nil {
		app, err := s.cache.Get(ctx, applySeq)
		if errors.Is(err, ErrApplicationNotFound) {
			return nil, ErrApplicationNotFound
		}
		if err != nil {
			log.Warn().Err(err).Int64("apply_seq", applySeq).Msg("application cache read failed")
		} else if app != nil {
			return app, nil
		}
	}

	app, err := s.repo.FindByID(ctx, applySeq)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}

	// The snapshot may already be stale if a mutation committed after the read,
	// so it is only stored when the mutation has not written the entry first.
	if s.cache != nil {
		if _, err := s.cache.Fill(ctx, app); err != nil {
			log.Warn().Err(err).Int64("apply_seq", applySeq).Msg("application cache fill failed")
		}
	}
	return app, nil
}

// List returns every application ordered by applySeq.
func (s *ApplicationService) List(ctx context.Context) ([]*promotion.Application, error) {
	apps, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Delete removes an application.
func (s *ApplicationService) Delete(ctx context.Context, applySeq int64) error {
	if err := s.repo.Delete(ctx, applySeq); err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("delete application: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.MarkDeleted(ctx, applySeq); err != nil {
			log.Warn().Err(err).Int64("apply_seq", applySeq).Msg("application cache delete marker failed")
			s.invalidate(ctx, applySeq)
		}
	}
	log.Info().Int64("apply_seq", applySeq).Msg("application deleted")
	return nil
}

func (s *ApplicationService) Approve(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "approve", func(app *promotion.Application, _ time.Time) error {
		return app.Approve()
	})
}

func (s *ApplicationService) Complete(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "complete", func(app *promotion.Application, _ time.Time) error {
		return app.Complete()
	})
}

func (s *ApplicationService) Cancel(ctx context.Context, applySeq int64, reason string) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "cancel", func(app *promotion.Application, _ time.Time) error {
		return app.Cancel(reason)
	})
}

// RequestEarlyEnd records an early termination for an in-service application.
func (s *ApplicationService) RequestEarlyEnd(ctx context.Context, applySeq int64, req *model.EarlyEndRequest) (*promotion.Application, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	return s.mutate(ctx, applySeq, "early_end", func(app *promotion.Application, now time.Time) error {
		info := promotion.EarlyEndInfo{
			ID:          uuid.NewString(),
			Reason:      req.Reason,
			RequestedBy: req.RequestedBy,
			RequestedAt: now,
		}
		return app.RequestEarlyEnd(info, req.EndDate, now)
	})
}

func (s *ApplicationService) Reschedule(ctx context.Context, applySeq int64, start, end time.Time) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "reschedule", func(app *promotion.Application, now time.Time) error {
		return app.ReschedulePromotion(start, end, now)
	})
}

func (s *ApplicationService) UpdateTitle(ctx context.Context, applySeq int64, title string) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "update_title", func(app *promotion.Application, _ time.Time) error {
		return app.UpdateTitle(title)
	})
}

func (s *ApplicationService) UpdateExhaustionAlarm(ctx context.Context, applySeq int64, enabled bool, thresholds []int) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "update_exhaustion_alarm", func(app *promotion.Application, _ time.Time) error {
		return app.UpdateExhaustionAlarm(enabled, thresholds)
	})
}

func (s *ApplicationService) UpdateImage(ctx context.Context, applySeq int64, image promotion.Image) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "update_image", func(app *promotion.Application, _ time.Time) error {
		app.UpdateImage(image)
		return nil
	})
}

func (s *ApplicationService) Review(ctx context.Context, applySeq int64, req *model.ReviewRequest) (*promotion.Application, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	return s.mutate(ctx, applySeq, "review", func(app *promotion.Application, now time.Time) error {
		app.RecordReview(promotion.ReviewDetail{Reviewer: req.Reviewer, Comment: req.Comment, ReviewedAt: now})
		return nil
	})
}

// ApplyPointReward grants points for a payment of amount on an in-service point promotion.
func (s *ApplicationService) ApplyPointReward(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.PointRewardResponse, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidRequest
	}

	var resp model.PointRewardResponse
	_, err := s.mutate(ctx, applySeq, "apply_point_reward", func(app *promotion.Application, now time.Time) error {
		pp, ok := app.Promotion().(*promotion.PointPromotion)
		if !ok {
			return fmt.Errorf("%w: point reward on %s", ErrUnsupportedPromotion, app.Promotion().Kind())
		}
		if app.Status() != promotion.StatusInService {
			return fmt.Errorf("%w: status is %s", ErrApplicationNotInService, app.Status())
		}

		granted, err := pp.ApplyPointReward(amount, now)
		if err != nil {
			return err
		}
		resp = model.PointRewardResponse{
			GrantedPoint:        granted,
			UsedPoint:           pp.UsedPoint(),
			RemainingPoint:      pp.RemainingPoint(),
			UsedPointPercentage: pp.UsedPointPercentage(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RedeemCoupon consumes one coupon of an in-service coupon promotion and returns the discount granted.
// The amount must be positive.
func (s *ApplicationService) RedeemCoupon(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidRequest
	}

	var resp model.QuoteResponse
	_, err := s.mutate(ctx, applySeq, "redeem_coupon", func(app *promotion.Application, now time.Time) error {
		c, ok := app.Promotion().(promotion.Coupon)
		if !ok {
			return fmt.Errorf("%w: coupon redemption on %s", ErrUnsupportedPromotion, app.Promotion().Kind())
		}
		if app.Status() != promotion.StatusInService {
			return fmt.Errorf("%w: status is %s", ErrApplicationNotInService, app.Status())
		}

		discount, err := c.Redeem(amount, now)
		if err != nil {
			return err
		}
		final := amount.Sub(discount)
		resp = model.QuoteResponse{
			Kind:               c.Kind(),
			Amount:             amount,
			Discount:           &discount,
			FinalPaymentAmount: &final,
			Applicable:         true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadCoupon issues one downloadable coupon.
func (s *ApplicationService) DownloadCoupon(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	return s.mutate(ctx, applySeq, "download_coupon", func(app *promotion.Application, now time.Time) error {
		dc, ok := app.Promotion().(*promotion.DownloadableCoupon)
		if !ok {
			return fmt.Errorf("%w: download on %s", ErrUnsupportedPromotion, app.Promotion().Kind())
		}
		if app.Status() != promotion.StatusInService {
			return fmt.Errorf("%w: status is %s", ErrApplicationNotInService, app.Status())
		}
		return dc.Download(now)
	})
}

// Quote previews the benefit of a payment of amount without changing any state.
func (s *ApplicationService) Quote(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidRequest
	}

	app, err := s.Get(ctx, applySeq)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := app.IsActive(now)

	resp := &model.QuoteResponse{Kind: app.Promotion().Kind(), Amount: amount}
	switch p := app.Promotion().(type) {
	case *promotion.PointPromotion:
		reward := p.CalculatePointReward(amount)
		resp.PointReward = &reward
		resp.Applicable = active && p.CanApply(amount, now)
	case promotion.Coupon:
		discount := p.CalculateDiscount(amount)
		final := p.FinalPaymentAmount(amount)
		resp.Discount = &discount
		resp.FinalPaymentAmount = &final
		resp.Applicable = active && p.ValidateForUse(amount) == nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPromotion, app.Promotion().Kind())
	}
	return resp, nil
}

// mutate loads the application under a row lock, applies fn and persists the result atomically.
// A failing fn leaves the stored application untouched.
// The cache entry is written while the row lock is held, so cache writes happen in commit order.
func (s *ApplicationService) mutate(ctx context.Context, applySeq int64, op string, fn func(app *promotion.Application, now time.Time) error) (*promotion.Application, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	app, err := s.repo.FindByIDForUpdate(ctx, tx, applySeq)
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("get application for update: %w", err)
	}

	from := app.Status()
	if err := fn(app, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tx, app); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	s.writeThrough(ctx, app)
	if err := tx.Commit(ctx); err != nil {
		s.invalidate(ctx, applySeq)
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	log.Info().
		Int64("apply_seq", applySeq).
		Str("operation", op).
		Str("from_status", string(from)).
		Str("to_status", string(app.Status())).
		Msg("application updated")
	return app, nil
}

// writeThrough stores the updated application, dropping the entry when the write fails.
func (s *ApplicationService) writeThrough(ctx context.Context, app *promotion.Application) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, app); err != nil {
		log.Warn().Err(err).Int64("apply_seq", app.ApplySeq()).Msg("application cache write failed")
		s.invalidate(ctx, app.ApplySeq())
	}
}

func (s *ApplicationService) invalidate(ctx context.Context, applySeq int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, applySeq); err != nil {
		log.Warn().Err(err).Int64("apply_seq", applySeq).Msg("application cache invalidation failed")
	}
}

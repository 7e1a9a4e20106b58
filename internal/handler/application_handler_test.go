package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
	"github.com/fairyhunter13/merchant-promotion-system/internal/model"
	"github.com/fairyhunter13/merchant-promotion-system/internal/service"
	"github.com/fairyhunter13/merchant-promotion-system/internal/validator"
)

var handlerNow = time.Date(2023, 3, 10, 9, 0, 0, 0, time.UTC)

// mockApplicationService is a mock implementation of ApplicationServiceInterface.
// Unset lifecycle functions return the fixture application unchanged.
type mockApplicationService struct {
	app *promotion.Application

	createFn           func(ctx context.Context, req *model.CreateApplicationRequest) (int64, error)
	getFn              func(ctx context.Context, applySeq int64) (*promotion.Application, error)
	deleteFn           func(ctx context.Context, applySeq int64) error
	approveFn          func(ctx context.Context, applySeq int64) (*promotion.Application, error)
	cancelFn           func(ctx context.Context, applySeq int64, reason string) (*promotion.Application, error)
	earlyEndFn         func(ctx context.Context, applySeq int64, req *model.EarlyEndRequest) (*promotion.Application, error)
	applyPointRewardFn func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.PointRewardResponse, error)
	redeemCouponFn     func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error)
	quoteFn            func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error)
}

func (m *mockApplicationService) Now() time.Time { return handlerNow }

func (m *mockApplicationService) Create(ctx context.Context, req *model.CreateApplicationRequest) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return 1, nil
}

func (m *mockApplicationService) Get(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	if m.getFn != nil {
		return m.getFn(ctx, applySeq)
	}
	return m.app, nil
}

func (m *mockApplicationService) List(ctx context.Context) ([]*promotion.Application, error) {
	return []*promotion.Application{m.app}, nil
}

func (m *mockApplicationService) Delete(ctx context.Context, applySeq int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, applySeq)
	}
	return nil
}

func (m *mockApplicationService) Approve(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, applySeq)
	}
	return m.app, nil
}

func (m *mockApplicationService) Complete(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) Cancel(ctx context.Context, applySeq int64, reason string) (*promotion.Application, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, applySeq, reason)
	}
	return m.app, nil
}

func (m *mockApplicationService) RequestEarlyEnd(ctx context.Context, applySeq int64, req *model.EarlyEndRequest) (*promotion.Application, error) {
	if m.earlyEndFn != nil {
		return m.earlyEndFn(ctx, applySeq, req)
	}
	return m.app, nil
}

func (m *mockApplicationService) Reschedule(ctx context.Context, applySeq int64, start, end time.Time) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) UpdateTitle(ctx context.Context, applySeq int64, title string) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) UpdateExhaustionAlarm(ctx context.Context, applySeq int64, enabled bool, thresholds []int) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) UpdateImage(ctx context.Context, applySeq int64, image promotion.Image) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) Review(ctx context.Context, applySeq int64, req *model.ReviewRequest) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) ApplyPointReward(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.PointRewardResponse, error) {
	if m.applyPointRewardFn != nil {
		return m.applyPointRewardFn(ctx, applySeq, amount)
	}
	return &model.PointRewardResponse{}, nil
}

func (m *mockApplicationService) RedeemCoupon(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
	if m.redeemCouponFn != nil {
		return m.redeemCouponFn(ctx, applySeq, amount)
	}
	return &model.QuoteResponse{Amount: amount}, nil
}

func (m *mockApplicationService) DownloadCoupon(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	return m.app, nil
}

func (m *mockApplicationService) Quote(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
	if m.quoteFn != nil {
		return m.quoteFn(ctx, applySeq, amount)
	}
	return &model.QuoteResponse{Amount: amount}, nil
}

func fixtureApplication(t *testing.T) *promotion.Application {
	t.Helper()
	doc := model.ApplicationDocument{
		ApplySeq:          5,
		Merchant:          model.MerchantDocument{ID: "m-1", Name: "Corner Cafe", CountryCode: "KR"},
		ApplicationStatus: promotion.StatusInService,
		Promotion: model.PromotionDocument{
			ID:               "promo-1",
			Kind:             promotion.KindPoint,
			Title:            "Spring Points",
			StartDate:        time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:          time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
			PromotionType:    promotion.PromotionTypePoint,
			DistributionType: promotion.DistributionTypeSaving,
			Point: &model.PointTerms{
				PromotionBudget: decimal.NewFromInt(1000),
				SavingType:      promotion.SavingFixedRate,
				SavingRate:      decimal.NewFromInt(10),
				UsedPoint:       decimal.NewFromInt(100),
				RemainingPoint:  decimal.NewFromInt(900),
			},
		},
		Order: model.OrderDocument{
			OrderStatus: promotion.OrderPaymentCompleted,
			PaymentInfo: promotion.PaymentInfo{
				PromotionType:    promotion.PromotionTypePoint,
				DistributionType: promotion.DistributionTypeSaving,
			},
		},
	}
	app, err := doc.ToDomain()
	require.NoError(t, err)
	return app
}

func setupTestApp(t *testing.T, mockSvc *mockApplicationService) *fiber.App {
	if mockSvc.app == nil {
		mockSvc.app = fixtureApplication(t)
	}
	app := fiber.New()
	h := NewApplicationHandler(mockSvc, validator.New())
	h.Register(app.Group("/api/applications"))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	result := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &result), string(raw))
	}
	return resp.StatusCode, result
}

const createBody = `{
	"merchant": {"id": "m-1", "name": "Corner Cafe", "country_code": "KR"},
	"application_route_type": "MERCHANT_CENTER",
	"promotion": {
		"kind": "POINT",
		"title": "Spring Points",
		"start_date": "2023-03-01T00:00:00Z",
		"end_date": "2023-03-31T00:00:00Z",
		"promotion_type": "POINT",
		"distribution_type": "SAVING",
		"point": {"promotion_budget": "1000", "saving_type": "FIXED_RATE", "saving_rate": 10}
	},
	"order": {"order_status": "PAYMENT_COMPLETED", "final_payment_price": 50000}
}`

func TestCreateApplication_Success(t *testing.T) {
	var captured *model.CreateApplicationRequest
	mockSvc := &mockApplicationService{
		createFn: func(ctx context.Context, req *model.CreateApplicationRequest) (int64, error) {
			captured = req
			return 7, nil
		},
	}
	app := setupTestApp(t, mockSvc)

	status, body := doRequest(t, app, http.MethodPost, "/api/applications", createBody)

	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, float64(7), body["apply_seq"])
	require.NotNil(t, captured)
	require.NotNil(t, captured.Promotion.Point)
	assert.Equal(t, "1000", captured.Promotion.Point.PromotionBudget.String())
	assert.Equal(t, "50000", captured.Order.FinalPaymentPrice.String())
}

func TestCreateApplication_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc map[string]any)
		wantErr string
	}{
		{
			name:    "missing title",
			mutate:  func(doc map[string]any) { delete(doc["promotion"].(map[string]any), "title") },
			wantErr: "invalid request: promotion.title is required",
		},
		{
			name:    "blank title",
			mutate:  func(doc map[string]any) { doc["promotion"].(map[string]any)["title"] = "   " },
			wantErr: "invalid request: promotion.title cannot be whitespace only",
		},
		{
			name:    "point terms missing",
			mutate:  func(doc map[string]any) { delete(doc["promotion"].(map[string]any), "point") },
			wantErr: "invalid request: promotion.point is required",
		},
		{
			name:    "unknown kind",
			mutate:  func(doc map[string]any) { doc["promotion"].(map[string]any)["kind"] = "BUNDLE" },
			wantErr: "invalid request: promotion.kind must be one of [POINT DOWNLOADABLE_COUPON REWARD_COUPON]",
		},
		{
			name:    "end before start",
			mutate:  func(doc map[string]any) { doc["promotion"].(map[string]any)["end_date"] = "2023-02-01T00:00:00Z" },
			wantErr: "invalid request: promotion.end_date must be after startdate",
		},
		{
			name: "zero budget",
			mutate: func(doc map[string]any) {
				doc["promotion"].(map[string]any)["point"].(map[string]any)["promotion_budget"] = 0
			},
			wantErr: "invalid request: promotion.point.promotion_budget must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal([]byte(createBody), &doc))
			tt.mutate(doc)
			raw, err := json.Marshal(doc)
			require.NoError(t, err)

			called := false
			mockSvc := &mockApplicationService{
				createFn: func(ctx context.Context, req *model.CreateApplicationRequest) (int64, error) {
					called = true
					return 0, nil
				},
			}
			app := setupTestApp(t, mockSvc)

			status, body := doRequest(t, app, http.MethodPost, "/api/applications", string(raw))

			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, tt.wantErr, body["error"])
			assert.False(t, called, "service should not be called for invalid input")
		})
	}
}

func TestCreateApplication_MalformedBody(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	status, body := doRequest(t, app, http.MethodPost, "/api/applications", `{"merchant":`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestCreateApplication_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{name: "inconsistent", err: service.ErrInconsistentApplication, wantStatus: fiber.StatusConflict, wantErr: service.ErrInconsistentApplication.Error()},
		{name: "duplicate", err: service.ErrApplicationExists, wantStatus: fiber.StatusConflict, wantErr: "application already exists"},
		{
			name:       "domain invariant",
			err:        fmt.Errorf("%w: used 5 + remaining 5 != budget 20", promotion.ErrInvalidPointCalculation),
			wantStatus: fiber.StatusBadRequest,
			wantErr:    "invalid point calculation: used 5 + remaining 5 != budget 20",
		},
		{name: "unexpected", err: errors.New("connection reset"), wantStatus: fiber.StatusInternalServerError, wantErr: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &mockApplicationService{
				createFn: func(ctx context.Context, req *model.CreateApplicationRequest) (int64, error) {
					return 0, tt.err
				},
			}
			app := setupTestApp(t, mockSvc)

			status, body := doRequest(t, app, http.MethodPost, "/api/applications", createBody)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestGetApplication_Success(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	status, body := doRequest(t, app, http.MethodGet, "/api/applications/5", "")

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(5), body["apply_seq"])
	assert.Equal(t, "IN_SERVICE", body["application_status"])
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "10", body["usage_percentage"])
}

func TestGetApplication_InvalidSeq(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	for _, seq := range []string{"abc", "0", "-3"} {
		status, body := doRequest(t, app, http.MethodGet, "/api/applications/"+seq, "")

		assert.Equal(t, fiber.StatusBadRequest, status, seq)
		assert.Equal(t, invalidSeq, body["error"], seq)
	}
}

func TestGetApplication_NotFound(t *testing.T) {
	mockSvc := &mockApplicationService{
		getFn: func(ctx context.Context, applySeq int64) (*promotion.Application, error) {
			return nil, service.ErrApplicationNotFound
		},
	}
	app := setupTestApp(t, mockSvc)

	status, body := doRequest(t, app, http.MethodGet, "/api/applications/99", "")

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "application not found", body["error"])
}

func TestListApplications(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, float64(5), list[0]["apply_seq"])
}

func TestDeleteApplication(t *testing.T) {
	var deleted int64
	mockSvc := &mockApplicationService{
		deleteFn: func(ctx context.Context, applySeq int64) error {
			deleted = applySeq
			return nil
		},
	}
	app := setupTestApp(t, mockSvc)

	status, _ := doRequest(t, app, http.MethodDelete, "/api/applications/5", "")

	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Equal(t, int64(5), deleted)
}

func TestApprove_PaymentNotCompleted(t *testing.T) {
	mockSvc := &mockApplicationService{
		approveFn: func(ctx context.Context, applySeq int64) (*promotion.Application, error) {
			return nil, fmt.Errorf("%w: order status is PAYMENT_WAITING", promotion.ErrPaymentNotCompleted)
		},
	}
	app := setupTestApp(t, mockSvc)

	status, body := doRequest(t, app, http.MethodPost, "/api/applications/5/approve", "")

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, body["error"], "PAYMENT_WAITING")
}

func TestCancel(t *testing.T) {
	var reason string
	mockSvc := &mockApplicationService{
		cancelFn: func(ctx context.Context, applySeq int64, r string) (*promotion.Application, error) {
			reason = r
			return nil, promotion.ErrAlreadyCancelled
		},
	}
	app := setupTestApp(t, mockSvc)

	status, body := doRequest(t, app, http.MethodPost, "/api/applications/5/cancel", `{"reason": "   "}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request: reason cannot be whitespace only", body["error"])

	status, _ = doRequest(t, app, http.MethodPost, "/api/applications/5/cancel", `{"reason": "closed"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "closed", reason)
}

func TestRequestEarlyEnd(t *testing.T) {
	var captured *model.EarlyEndRequest
	mockSvc := &mockApplicationService{
		earlyEndFn: func(ctx context.Context, applySeq int64, req *model.EarlyEndRequest) (*promotion.Application, error) {
			captured = req
			return nil, promotion.ErrInvalidEarlyEndDate
		},
	}
	app := setupTestApp(t, mockSvc)

	status, _ := doRequest(t, app, http.MethodPost, "/api/applications/5/early-end",
		`{"reason": "budget cut", "requested_by": "ops-lee", "end_date": "2023-03-20T00:00:00Z"}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, captured)
	assert.Equal(t, time.Date(2023, 3, 20, 0, 0, 0, 0, time.UTC), captured.EndDate.UTC())
}

func TestUpdateExhaustionAlarm_InvalidThreshold(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	status, body := doRequest(t, app, http.MethodPost, "/api/applications/5/exhaustion-alarm",
		`{"enabled": true, "thresholds": [50, 60]}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request: thresholds[1] must be one of [50 75 95]", body["error"])
}

func TestLifecycleRoutes_ReturnApplication(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	routes := []struct {
		path string
		body string
	}{
		{"/api/applications/5/approve", ""},
		{"/api/applications/5/complete", ""},
		{"/api/applications/5/reschedule", `{"start_date": "2023-04-01T00:00:00Z", "end_date": "2023-04-30T00:00:00Z"}`},
		{"/api/applications/5/title", `{"title": "Summer Points"}`},
		{"/api/applications/5/image", `{"url": "https://cdn.example.com/banner.png", "file_name": "banner.png"}`},
		{"/api/applications/5/review", `{"reviewer": "ops-kim", "comment": "ok"}`},
		{"/api/applications/5/downloads", ""},
	}

	for _, r := range routes {
		t.Run(r.path, func(t *testing.T) {
			status, body := doRequest(t, app, http.MethodPost, r.path, r.body)

			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, float64(5), body["apply_seq"])
		})
	}
}

func TestApplyPointReward(t *testing.T) {
	mockSvc := &mockApplicationService{
		applyPointRewardFn: func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.PointRewardResponse, error) {
			if amount.Equal(decimal.NewFromInt(100)) {
				return nil, &promotion.MinimumPaymentError{Required: decimal.NewFromInt(500), Actual: amount}
			}
			return &model.PointRewardResponse{
				GrantedPoint:   amount.Div(decimal.NewFromInt(10)),
				RemainingPoint: decimal.NewFromInt(400),
			}, nil
		},
	}
	app := setupTestApp(t, mockSvc)

	status, body := doRequest(t, app, http.MethodPost, "/api/applications/5/point-rewards", `{"amount": 5000}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "500", body["granted_point"])

	status, body = doRequest(t, app, http.MethodPost, "/api/applications/5/point-rewards", `{"amount": 100}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "minimum payment not met: required 500, got 100", body["error"])

	status, body = doRequest(t, app, http.MethodPost, "/api/applications/5/point-rewards", `{"amount": 0}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request: amount must be greater than 0", body["error"])
}

func TestRedeemCoupon(t *testing.T) {
	app := setupTestApp(t, &mockApplicationService{})

	status, body := doRequest(t, app, http.MethodPost, "/api/applications/5/coupon-redemptions", `{"amount": "25000.50"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "25000.5", body["amount"])
}

func TestRedeemCoupon_NonPositiveAmount(t *testing.T) {
	called := false
	mockSvc := &mockApplicationService{
		redeemCouponFn: func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
			called = true
			return nil, nil
		},
	}
	app := setupTestApp(t, mockSvc)

	for _, payload := range []string{`{"amount": "0"}`, `{"amount": "-100"}`, `{}`} {
		status, body := doRequest(t, app, http.MethodPost, "/api/applications/5/coupon-redemptions", payload)

		assert.Equal(t, fiber.StatusBadRequest, status, payload)
		assert.Contains(t, body["error"], "amount must be greater than 0", payload)
	}
	assert.False(t, called, "invalid amounts never reach the service")
}

func TestRedeemCoupon_NoDiscount(t *testing.T) {
	mockSvc := &mockApplicationService{
		redeemCouponFn: func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
			return nil, promotion.ErrNoDiscount
		},
	}
	app := setupTestApp(t, mockSvc)

	status, _ := doRequest(t, app, http.MethodPost, "/api/applications/5/coupon-redemptions", `{"amount": "100"}`)

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestQuote(t *testing.T) {
	mockSvc := &mockApplicationService{
		quoteFn: func(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error) {
			if applySeq == 6 {
				return nil, service.ErrUnsupportedPromotion
			}
			reward := decimal.NewFromInt(1200)
			return &model.QuoteResponse{Kind: promotion.KindPoint, Amount: amount, PointReward: &reward, Applicable: true}, nil
		},
	}
	app := setupTestApp(t, mockSvc)

	status, body := doRequest(t, app, http.MethodGet, "/api/applications/5/quote?amount=12000", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "1200", body["point_reward"])
	assert.Equal(t, true, body["applicable"])
	assert.NotContains(t, body, "discount")

	status, _ = doRequest(t, app, http.MethodGet, "/api/applications/6/quote?amount=12000", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	for _, q := range []string{"", "?amount=abc", "?amount=-1"} {
		status, _ = doRequest(t, app, http.MethodGet, "/api/applications/5/quote"+q, "")
		assert.Equal(t, fiber.StatusBadRequest, status, q)
	}
}

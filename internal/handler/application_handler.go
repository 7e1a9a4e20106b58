package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
	"github.com/fairyhunter13/merchant-promotion-system/internal/model"
	"github.com/fairyhunter13/merchant-promotion-system/internal/service"
)

// ApplicationServiceInterface defines the interface for promotion application business logic.
type ApplicationServiceInterface interface {
	Now() time.Time
	Create(ctx context.Context, req *model.CreateApplicationRequest) (int64, error)
	Get(ctx context.Context, applySeq int64) (*promotion.Application, error)
	List(ctx context.Context) ([]*promotion.Application, error)
	Delete(ctx context.Context, applySeq int64) error

	Approve(ctx context.Context, applySeq int64) (*promotion.Application, error)
	Complete(ctx context.Context, applySeq int64) (*promotion.Application, error)
	Cancel(ctx context.Context, applySeq int64, reason string) (*promotion.Application, error)
	RequestEarlyEnd(ctx context.Context, applySeq int64, req *model.EarlyEndRequest) (*promotion.Application, error)
	Reschedule(ctx context.Context, applySeq int64, start, end time.Time) (*promotion.Application, error)
	UpdateTitle(ctx context.Context, applySeq int64, title string) (*promotion.Application, error)
	UpdateExhaustionAlarm(ctx context.Context, applySeq int64, enabled bool, thresholds []int) (*promotion.Application, error)
	UpdateImage(ctx context.Context, applySeq int64, image promotion.Image) (*promotion.Application, error)
	Review(ctx context.Context, applySeq int64, req *model.ReviewRequest) (*promotion.Application, error)

	ApplyPointReward(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.PointRewardResponse, error)
	RedeemCoupon(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error)
	DownloadCoupon(ctx context.Context, applySeq int64) (*promotion.Application, error)
	Quote(ctx context.Context, applySeq int64, amount decimal.Decimal) (*model.QuoteResponse, error)
}

// ApplicationHandler handles HTTP requests for promotion applications.
type ApplicationHandler struct {
	service   ApplicationServiceInterface
	validator *validator.Validate
}

// NewApplicationHandler creates a new ApplicationHandler with the given service and validator.
func NewApplicationHandler(svc ApplicationServiceInterface, v *validator.Validate) *ApplicationHandler {
	return &ApplicationHandler{service: svc, validator: v}
}

// Register mounts the application routes on r.
func (h *ApplicationHandler) Register(r fiber.Router) {
	r.Post("/", h.CreateApplication)
	r.Get("/", h.ListApplications)
	r.Get("/:seq", h.GetApplication)
	r.Delete("/:seq", h.DeleteApplication)

	r.Post("/:seq/approve", h.Approve)
	r.Post("/:seq/complete", h.Complete)
	r.Post("/:seq/cancel", h.Cancel)
	r.Post("/:seq/early-end", h.RequestEarlyEnd)
	r.Post("/:seq/reschedule", h.Reschedule)
	r.Post("/:seq/title", h.UpdateTitle)
	r.Post("/:seq/exhaustion-alarm", h.UpdateExhaustionAlarm)
	r.Post("/:seq/image", h.UpdateImage)
	r.Post("/:seq/review", h.Review)

	r.Post("/:seq/point-rewards", h.ApplyPointReward)
	r.Post("/:seq/coupon-redemptions", h.RedeemCoupon)
	r.Post("/:seq/downloads", h.DownloadCoupon)
	r.Get("/:seq/quote", h.Quote)
}

// formatValidationError converts the first validator error into a client message
// naming the offending JSON field path.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max":
		return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
	case "oneof":
		return "invalid request: " + field + " must be one of [" + fe.Param() + "]"
	case "gt", "gte":
		return "invalid request: " + field + " must be " + comparison(fe.Tag()) + " " + fe.Param()
	case "gtfield":
		return "invalid request: " + field + " must be after " + strings.ToLower(fe.Param())
	default:
		return "invalid request: " + field + " is invalid"
	}
}

func comparison(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}

// statusFor maps service and domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrApplicationNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrApplicationExists),
		errors.Is(err, service.ErrApplicationNotInService),
		errors.Is(err, service.ErrInconsistentApplication),
		errors.Is(err, promotion.ErrInvalidStatusTransition),
		errors.Is(err, promotion.ErrAlreadyCancelled),
		errors.Is(err, promotion.ErrPaymentNotCompleted):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrUnsupportedPromotion),
		errors.Is(err, promotion.ErrPromotionNotActive),
		errors.Is(err, promotion.ErrInsufficientBudget),
		errors.Is(err, promotion.ErrMinimumPaymentNotMet),
		errors.Is(err, promotion.ErrNoDiscount),
		errors.Is(err, promotion.ErrCouponExpired):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, model.ErrInvalidDocument),
		errors.Is(err, promotion.ErrInvalidPeriod),
		errors.Is(err, promotion.ErrInvalidPercentage),
		errors.Is(err, promotion.ErrInvalidCouponQuantity),
		errors.Is(err, promotion.ErrInvalidPointCalculation),
		errors.Is(err, promotion.ErrInvalidTitle),
		errors.Is(err, promotion.ErrEmptyCancelReason),
		errors.Is(err, promotion.ErrInvalidEarlyEndDate),
		errors.Is(err, promotion.ErrInvalidApplication),
		errors.Is(err, promotion.ErrInvalidOrder):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes the error response for err. Unexpected errors are logged and masked.
func fail(c *fiber.Ctx, err error, applySeq int64, op string) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int64("apply_seq", applySeq).
			Msgf("failed to %s", op)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func applySeqParam(c *fiber.Ctx) (int64, bool) {
	seq, err := c.ParamsInt("seq")
	if err != nil || seq <= 0 {
		return 0, false
	}
	return int64(seq), true
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

const invalidSeq = "invalid request: seq must be a positive integer"

// bind parses and validates the JSON body into req, returning a client message on failure.
func (h *ApplicationHandler) bind(c *fiber.Ctx, req any) string {
	if err := c.BodyParser(req); err != nil {
		return "invalid request body"
	}
	if err := h.validator.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return ""
}

func (h *ApplicationHandler) respond(c *fiber.Ctx, app *promotion.Application) error {
	return c.JSON(model.NewApplicationResponse(app, h.service.Now()))
}

// CreateApplication handles POST /api/applications.
func (h *ApplicationHandler) CreateApplication(c *fiber.Ctx) error {
	var req model.CreateApplicationRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	applySeq, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return fail(c, err, 0, "create application")
	}
	return c.Status(fiber.StatusCreated).JSON(model.CreateApplicationResponse{ApplySeq: applySeq})
}

// ListApplications handles GET /api/applications.
func (h *ApplicationHandler) ListApplications(c *fiber.Ctx) error {
	apps, err := h.service.List(c.Context())
	if err != nil {
		return fail(c, err, 0, "list applications")
	}

	now := h.service.Now()
	resp := make([]*model.ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, model.NewApplicationResponse(app, now))
	}
	return c.JSON(resp)
}

// GetApplication handles GET /api/applications/:seq.
func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}

	app, err := h.service.Get(c.Context(), applySeq)
	if err != nil {
		return fail(c, err, applySeq, "get application")
	}
	return h.respond(c, app)
}

// DeleteApplication handles DELETE /api/applications/:seq.
func (h *ApplicationHandler) DeleteApplication(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}

	if err := h.service.Delete(c.Context(), applySeq); err != nil {
		return fail(c, err, applySeq, "delete application")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ApplicationHandler) Approve(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}

	app, err := h.service.Approve(c.Context(), applySeq)
	if err != nil {
		return fail(c, err, applySeq, "approve application")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) Complete(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}

	app, err := h.service.Complete(c.Context(), applySeq)
	if err != nil {
		return fail(c, err, applySeq, "complete application")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) Cancel(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.CancelRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.Cancel(c.Context(), applySeq, req.Reason)
	if err != nil {
		return fail(c, err, applySeq, "cancel application")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) RequestEarlyEnd(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.EarlyEndRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.RequestEarlyEnd(c.Context(), applySeq, &req)
	if err != nil {
		return fail(c, err, applySeq, "request early end")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) Reschedule(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.RescheduleRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.Reschedule(c.Context(), applySeq, req.StartDate, req.EndDate)
	if err != nil {
		return fail(c, err, applySeq, "reschedule promotion")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) UpdateTitle(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.UpdateTitleRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.UpdateTitle(c.Context(), applySeq, req.Title)
	if err != nil {
		return fail(c, err, applySeq, "update title")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) UpdateExhaustionAlarm(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.ExhaustionAlarmRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.UpdateExhaustionAlarm(c.Context(), applySeq, req.Enabled, req.Thresholds)
	if err != nil {
		return fail(c, err, applySeq, "update exhaustion alarm")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) UpdateImage(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.ImageRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.UpdateImage(c.Context(), applySeq, promotion.Image{URL: req.URL, FileName: req.FileName})
	if err != nil {
		return fail(c, err, applySeq, "update image")
	}
	return h.respond(c, app)
}

func (h *ApplicationHandler) Review(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.ReviewRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	app, err := h.service.Review(c.Context(), applySeq, &req)
	if err != nil {
		return fail(c, err, applySeq, "record review")
	}
	return h.respond(c, app)
}

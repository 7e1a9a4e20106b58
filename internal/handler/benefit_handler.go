package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/merchant-promotion-system/internal/model"
)

// ApplyPointReward handles POST /api/applications/:seq/point-rewards.
func (h *ApplicationHandler) ApplyPointReward(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.PointRewardRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	resp, err := h.service.ApplyPointReward(c.Context(), applySeq, req.Amount)
	if err != nil {
		return fail(c, err, applySeq, "apply point reward")
	}

	log.Info().
		Int64("apply_seq", applySeq).
		Str("amount", req.Amount.String()).
		Str("granted_point", resp.GrantedPoint.String()).
		Str("remaining_point", resp.RemainingPoint.String()).
		Msg("point reward granted")
	return c.JSON(resp)
}

// RedeemCoupon handles POST /api/applications/:seq/coupon-redemptions.
func (h *ApplicationHandler) RedeemCoupon(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	var req model.CouponRedemptionRequest
	if msg := h.bind(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	resp, err := h.service.RedeemCoupon(c.Context(), applySeq, req.Amount)
	if err != nil {
		return fail(c, err, applySeq, "redeem coupon")
	}
	return c.JSON(resp)
}

// DownloadCoupon handles POST /api/applications/:seq/downloads.
func (h *ApplicationHandler) DownloadCoupon(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}

	app, err := h.service.DownloadCoupon(c.Context(), applySeq)
	if err != nil {
		return fail(c, err, applySeq, "download coupon")
	}
	return h.respond(c, app)
}

// Quote handles GET /api/applications/:seq/quote?amount=.
func (h *ApplicationHandler) Quote(c *fiber.Ctx) error {
	applySeq, ok := applySeqParam(c)
	if !ok {
		return badRequest(c, invalidSeq)
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.IsNegative() {
		return badRequest(c, "invalid request: amount must be a non-negative number")
	}

	resp, err := h.service.Quote(c.Context(), applySeq, amount)
	if err != nil {
		return fail(c, err, applySeq, "quote")
	}
	return c.JSON(resp)
}

// Package httpapi is the HTTP face of the redemption core: bearer-token
// identity, request validation, one service call per route, and a single
// error-to-status mapping. It holds no business rules of its own.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/redemption"
)

// Handler mounts the redemption routes onto a gin group.
type Handler struct {
	svc *redemption.Service
	log *zap.Logger
}

func NewHandler(svc *redemption.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log.With(zap.String("component", "httpapi"))}
}

// Register mounts all routes. The group must already carry Auth; validator
// routes additionally require the validator or admin role.
func (h *Handler) Register(rg *gin.RouterGroup) {
	ent := rg.Group("/entitlements")
	ent.POST("/claim", h.handleClaim)
	ent.POST("/:id/qr-token", h.handleProve)
	ent.POST("/:id/cancel", h.handleCancel)
	ent.GET("", h.handleList)
	ent.GET("/:id", h.handleGet)

	me := rg.Group("/me")
	me.GET("/savings", h.handleSavings)
	me.GET("/limits", h.handleLimits)

	val := rg.Group("", RequireRole(domain.RoleValidator, domain.RoleAdmin))
	val.POST("/validate", h.handleValidate)
	val.GET("/validate/history", h.handleHistory)
	val.POST("/redemptions/confirm", h.handleConfirm)
	val.POST("/redemptions/:id/void", h.handleVoid)
}

// ── student routes ──

type claimRequest struct {
	OfferID  string `json:"offer_id" binding:"required"`
	DeviceID string `json:"device_id"`
}

func (h *Handler) handleClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, domain.Wrap(domain.KindInvalidArgument, "invalid request body", err))
		return
	}

	e, err := h.svc.Claim(c.Request.Context(), callerID(c), req.OfferID, req.DeviceID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"entitlement_id": e.ID,
		"offer_id":       e.OfferID,
		"state":          e.State,
		"claimed_at":     e.ClaimedAt,
		"expires_at":     e.ExpiresAt,
	})
}

func (h *Handler) handleProve(c *gin.Context) {
	p, err := h.svc.Prove(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"qr_token":    p.Token,
		"expires_at":  p.ExpiresAt,
		"ttl_seconds": int(p.TTL.Seconds()),
	})
}

func (h *Handler) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.CancelValidation(c.Request.Context(), callerID(c), id); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entitlement_id": id,
		"state":          domain.StateActive,
	})
}

func (h *Handler) handleList(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		abortError(c, err)
		return
	}

	list, err := h.svc.List(c.Request.Context(), callerID(c), domain.State(c.Query("state")), limit)
	if err != nil {
		abortError(c, err)
		return
	}

	items := make([]gin.H, 0, len(list))
	for _, e := range list {
		items = append(items, gin.H{
			"entitlement_id": e.ID,
			"offer_id":       e.OfferID,
			"offer_title":    e.OfferTitle,
			"merchant_name":  e.MerchantName,
			"state":          e.State,
			"claimed_at":     e.ClaimedAt,
			"expires_at":     e.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entitlements": items, "count": len(items)})
}

func (h *Handler) handleGet(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	body := gin.H{
		"entitlement_id": e.ID,
		"offer_id":       e.OfferID,
		"state":          e.State,
		"claimed_at":     e.ClaimedAt,
		"claim_day":      e.ClaimDay,
		"expires_at":     e.ExpiresAt,
	}
	if e.UsedAt != nil {
		body["used_at"] = e.UsedAt
	}
	if e.VoidedAt != nil {
		body["voided_at"] = e.VoidedAt
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) handleSavings(c *gin.Context) {
	sum, err := h.svc.Savings(c.Request.Context(), callerID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_redemptions": sum.TotalRedemptions,
		"total_savings":     sum.TotalSavings.StringFixed(2),
		"total_spent":       sum.TotalSpent.StringFixed(2),
	})
}

func (h *Handler) handleLimits(c *gin.Context) {
	rem, err := h.svc.Limits(c.Request.Context(), callerID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"velocity_remaining": rem.Velocity,
		"velocity_reset_sec": int(rem.VelocityResetIn.Seconds()),
		"daily_remaining":    rem.Daily,
		"daily_reset_sec":    int(rem.DailyResetIn.Seconds()),
	})
}

// ── validator routes ──

type validateRequest struct {
	QRToken  string `json:"qr_token" binding:"required"`
	DeviceID string `json:"device_id"`
}

// handleValidate answers PASS or FAIL only. The FAIL envelope carries the
// coarse error kind so terminals can distinguish "retry" from "give up",
// and nothing else a probing terminal could learn from.
func (h *Handler) handleValidate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, domain.Wrap(domain.KindInvalidArgument, "invalid request body", err))
		return
	}

	pass, err := h.svc.Validate(c.Request.Context(), callerID(c), req.QRToken, req.DeviceID)
	if err != nil {
		failValidation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":         "PASS",
		"entitlement_id": pass.EntitlementID,
		"offer_id":       pass.OfferID,
		"offer_title":    pass.OfferTitle,
		"discount":       pass.DiscountText,
		"merchant_name":  pass.MerchantName,
		"student_name":   pass.StudentName,
	})
}

func failValidation(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	c.JSON(statusOf(kind), gin.H{
		"result": "FAIL",
		"code":   string(kind),
		"error":  publicMessage(err),
	})
}

type confirmRequest struct {
	EntitlementID string           `json:"entitlement_id" binding:"required"`
	TotalBill     decimal.Decimal  `json:"total_bill"`
	FinalAmount   *decimal.Decimal `json:"final_amount"`
}

func (h *Handler) handleConfirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, domain.Wrap(domain.KindInvalidArgument, "invalid request body", err))
		return
	}

	r, err := h.svc.Confirm(c.Request.Context(), callerID(c), req.EntitlementID, req.TotalBill, req.FinalAmount)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"redemption_id":   r.ID,
		"entitlement_id":  r.EntitlementID,
		"total_bill":      r.TotalBill.StringFixed(2),
		"discount_amount": r.DiscountAmount.StringFixed(2),
		"final_amount":    r.FinalAmount.StringFixed(2),
		"redeemed_at":     r.RedeemedAt,
	})
}

type voidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) handleVoid(c *gin.Context) {
	var req voidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, domain.Wrap(domain.KindInvalidArgument, "invalid request body", err))
		return
	}

	id := c.Param("id")
	voidedAt, err := h.svc.Void(c.Request.Context(), callerID(c), id, req.Reason)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entitlement_id": id,
		"voided_at":      voidedAt,
	})
}

func (h *Handler) handleHistory(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		abortError(c, err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		abortError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		abortError(c, err)
		return
	}

	hist, err := h.svc.ValidatorHistory(c.Request.Context(), callerID(c), from, to, limit)
	if err != nil {
		abortError(c, err)
		return
	}

	items := make([]gin.H, 0, len(hist))
	for _, r := range hist {
		item := gin.H{
			"redemption_id":   r.ID,
			"entitlement_id":  r.EntitlementID,
			"offer_id":        r.OfferID,
			"offer_type":      r.OfferType,
			"total_bill":      r.TotalBill.StringFixed(2),
			"discount_amount": r.DiscountAmount.StringFixed(2),
			"final_amount":    r.FinalAmount.StringFixed(2),
			"redeemed_at":     r.RedeemedAt,
			"is_voided":       r.IsVoided,
		}
		if r.VoidedAt != nil {
			item["voided_at"] = r.VoidedAt
			item["void_reason"] = r.VoidReason
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"redemptions": items, "count": len(items)})
}

// ── query helpers ──

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Ef(domain.KindInvalidArgument, "%s must be a non-negative integer", name)
	}
	return n, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, domain.Ef(domain.KindInvalidArgument, "%s must be RFC3339 or YYYY-MM-DD", name)
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopan-drive/internal/drive"
	"gopan-drive/internal/payment"
	"gopan-drive/internal/quota"
)

// VIPHandler lists plans and runs purchases.
type VIPHandler struct {
	drives    *drive.Registry
	purchaser payment.Purchaser
}

func NewVIPHandler(drives *drive.Registry, purchaser payment.Purchaser) *VIPHandler {
	if purchaser == nil {
		purchaser = payment.NewSimulator(drives.Policy(), 0)
	}
	return &VIPHandler{drives: drives, purchaser: purchaser}
}

// GetPlans handles GET /api/vip/plans
func (h *VIPHandler) GetPlans(c *gin.Context) {
	plans := h.drives.Policy().Plans()
	out := make([]gin.H, len(plans))
	for i, p := range plans {
		out[i] = gin.H{
			"id":        p.ID,
			"name":      p.Name,
			"price":     p.Price,
			"period":    p.Period,
			"limit":     p.Limit,
			"limit_str": p.LimitHuman(),
			"features":  p.Features,
		}
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// PurchaseRequest represents a plan purchase
type PurchaseRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// Purchase handles POST /api/vip/purchase
func (h *VIPHandler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	grant, err := d.Upgrade(c.Request.Context(), h.purchaser, quota.Tier(req.PlanID))
	switch {
	case errors.Is(err, payment.ErrNotPurchasable), errors.Is(err, quota.ErrUnknownTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Payment was interrupted"})
		return
	case err != nil:
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Upgrade successful",
		"vip":      grant,
		"capacity": d.Store.Capacity(),
	})
}

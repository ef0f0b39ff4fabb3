package api

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"gopan-drive/internal/drive"
)

// CapacityHandler handles storage capacity related operations
type CapacityHandler struct {
	drives *drive.Registry
}

func NewCapacityHandler(drives *drive.Registry) *CapacityHandler {
	return &CapacityHandler{drives: drives}
}

// GetCapacity returns the current user's storage capacity information
func (h *CapacityHandler) GetCapacity(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	capacity := d.Store.Capacity()
	grant := d.Store.Grant()

	c.JSON(http.StatusOK, gin.H{
		"total_quota":     capacity.Limit,
		"total_used":      capacity.Used,
		"remaining":       capacity.Remaining,
		"percentage":      capacity.Percent,
		"total_quota_str": humanize.IBytes(uint64(capacity.Limit)),
		"total_used_str":  humanize.IBytes(uint64(capacity.Used)),
		"tier":            grant.Tier,
		"tier_name":       grant.DisplayName,
	})
}

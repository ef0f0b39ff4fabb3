package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gopan-drive/internal/drive"
	"gopan-drive/internal/metrics"
)

type ShareHandler struct {
	drives *drive.Registry
}

func NewShareHandler(drives *drive.Registry) *ShareHandler {
	return &ShareHandler{drives: drives}
}

// CreateShare handles POST /api/shares - Create share
func (h *ShareHandler) CreateShare(c *gin.Context) {
	var req struct {
		NodeID string `json:"node_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	link, err := d.Shares.Issue(req.NodeID)
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.RecordShareIssued()

	c.JSON(http.StatusCreated, link)
}

// GetMyShares handles GET /api/shares
func (h *ShareHandler) GetMyShares(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	links := d.Shares.List()

	shares := make([]gin.H, 0, len(links))
	for _, l := range links {
		item := gin.H{
			"code":         l.Token,
			"node_id":      l.NodeID,
			"url":          l.URL,
			"created_at":   l.CreatedAt,
			"access_count": l.AccessCount,
		}
		if n, err := d.Store.Get(l.NodeID); err == nil {
			item["node"] = fileJSON(n)
		}
		shares = append(shares, item)
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares, "total": len(shares)})
}

// DeleteShare handles DELETE /api/shares/:code
func (h *ShareHandler) DeleteShare(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	if err := d.Shares.Revoke(c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Share deleted"})
}

// GetShare handles GET /api/shares/:code - Public share access
func (h *ShareHandler) GetShare(c *gin.Context) {
	d, link, err := h.drives.ResolveShare(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share not found"})
		return
	}

	n, err := d.Store.Get(link.NodeID)
	if err != nil || n.IsDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Shared file is no longer available"})
		return
	}

	resp := gin.H{
		"code":         link.Token,
		"owner":        d.Owner,
		"access_count": link.AccessCount,
		"node":         fileJSON(n),
	}
	if n.IsFolder() {
		children, err := d.View.ListChildren(n.ID)
		if err == nil {
			resp["children"] = filesJSON(children)
		}
	} else if url, err := d.ContentURL(c.Request.Context(), n); err == nil && url != "" {
		resp["download_url"] = url
	}
	c.JSON(http.StatusOK, resp)
}

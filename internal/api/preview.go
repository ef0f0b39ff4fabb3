package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gopan-drive/config"
	"gopan-drive/internal/drive"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/preview"
)

// PreviewHandler handles file preview requests
type PreviewHandler struct {
	drives *drive.Registry
	cfg    *config.PreviewConfig
}

func NewPreviewHandler(drives *drive.Registry, cfg *config.PreviewConfig) *PreviewHandler {
	return &PreviewHandler{drives: drives, cfg: cfg}
}

// GetPreview handles GET /api/preview/:id
func (h *PreviewHandler) GetPreview(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	n, err := d.Store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !n.IsFile() || n.IsDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	// Generate presigned URL
	fileURL, err := d.ContentURL(c.Request.Context(), n)
	if err != nil {
		logger.Error("failed to generate preview URL", zap.String("file_id", n.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate preview URL"})
		return
	}

	var kkBase string
	if h.cfg.KKFileView.Enabled {
		kkBase = h.cfg.KKFileView.BaseURL
	}
	c.JSON(http.StatusOK, preview.Describe(n.MimeType, n.Name, fileURL, kkBase))
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gopan-drive/internal/drive"
	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/quota"
)

// currentDrive loads the drive of the authenticated user.
func currentDrive(c *gin.Context, drives *drive.Registry) (*drive.Drive, bool) {
	username := c.GetString("username")
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	d, err := drives.Get(username)
	if err != nil {
		logger.Error("failed to load drive", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drive"})
		return nil, false
	}
	return d, true
}

// respondError maps tree errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var qe *filetree.QuotaError
	switch {
	case errors.As(err, &qe):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     err.Error(),
			"upgrade":   true,
			"used":      qe.Used,
			"requested": qe.Requested,
			"limit":     qe.Limit,
		})
	case errors.Is(err, filetree.ErrValidation), errors.Is(err, quota.ErrUnknownTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, filetree.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, filetree.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, filetree.ErrBrokenPath):
		logger.Error("tree integrity violation", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "File tree is corrupted"})
	default:
		logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func fileJSON(n filetree.Node) gin.H {
	h := gin.H{
		"id":         n.ID,
		"name":       n.Name,
		"type":       n.Kind,
		"size":       n.SizeBytes,
		"mime_type":  n.MimeType,
		"parent_id":  n.ParentID,
		"created_at": n.CreatedAt,
		"is_deleted": n.IsDeleted,
	}
	if n.DeletedAt != nil {
		h["deleted_at"] = n.DeletedAt
	}
	if n.IsFile() {
		h["category"] = filetree.CategoryOf(n.MimeType)
	}
	return h
}

func filesJSON(nodes []filetree.Node) []gin.H {
	files := make([]gin.H, len(nodes))
	for i, n := range nodes {
		files[i] = fileJSON(n)
	}
	return files
}

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gopan-drive/internal/drive"
	"gopan-drive/internal/upload"
)

// sniffBytes is how much of a multipart upload is read for type detection.
const sniffBytes = 512

type UploadHandler struct {
	drives *drive.Registry
}

func NewUploadHandler(drives *drive.Registry) *UploadHandler {
	return &UploadHandler{drives: drives}
}

// StartUploadRequest describes a file about to be transferred.
type StartUploadRequest struct {
	Name     string `json:"name" binding:"required"`
	Size     int64  `json:"size" binding:"min=0"`
	MimeType string `json:"mime_type"`
	ParentID string `json:"parent_id"`
}

// StartUpload handles POST /api/uploads. It accepts either a JSON
// description or a multipart form with a "file" field.
func (h *UploadHandler) StartUpload(c *gin.Context) {
	var req upload.Request
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
			return
		}
		req = upload.Request{
			Name:      fh.Filename,
			ParentID:  c.PostForm("parent_id"),
			SizeBytes: fh.Size,
			MimeType:  fh.Header.Get("Content-Type"),
		}
		if req.MimeType == "application/octet-stream" {
			req.MimeType = ""
		}
		if f, err := fh.Open(); err == nil {
			req.Sample, _ = io.ReadAll(io.LimitReader(f, sniffBytes))
			f.Close()
		}
	} else {
		var body StartUploadRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req = upload.Request{
			Name:      body.Name,
			ParentID:  body.ParentID,
			SizeBytes: body.Size,
			MimeType:  body.MimeType,
		}
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	s, err := d.Uploads.Begin(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.Status())
}

// ListUploads handles GET /api/uploads
func (h *UploadHandler) ListUploads(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	if c.Query("prune") == "true" {
		d.Uploads.Prune()
	}
	c.JSON(http.StatusOK, gin.H{"uploads": d.Uploads.List()})
}

// GetUpload handles GET /api/uploads/:id
func (h *UploadHandler) GetUpload(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	s, err := d.Uploads.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

// AdvanceUpload handles POST /api/uploads/:id/advance?step=N
func (h *UploadHandler) AdvanceUpload(c *gin.Context) {
	step, err := strconv.Atoi(c.DefaultQuery("step", "10"))
	if err != nil || step <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step must be a positive integer"})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	st, err := d.Uploads.Advance(c.Param("id"), step)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CancelUpload handles DELETE /api/uploads/:id
func (h *UploadHandler) CancelUpload(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	if err := d.Uploads.Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	s, err := d.Uploads.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

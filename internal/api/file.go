package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gopan-drive/internal/ai"
	"gopan-drive/internal/drive"
	"gopan-drive/internal/filetree"
	"gopan-drive/internal/view"
)

// maxAnalyzeBytes caps the file content forwarded for analysis.
const maxAnalyzeBytes = 4 << 20

type FileHandler struct {
	drives   *drive.Registry
	analyzer ai.Analyzer
}

func NewFileHandler(drives *drive.Registry, analyzer ai.Analyzer) *FileHandler {
	if analyzer == nil {
		analyzer = ai.Fallback{}
	}
	return &FileHandler{drives: drives, analyzer: analyzer}
}

// GetFiles handles GET /api/files - List a folder
func (h *FileHandler) GetFiles(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	parentID := c.DefaultQuery("parent_id", filetree.RootID)

	nodes, err := d.View.ListChildren(parentID)
	if err != nil {
		respondError(c, err)
		return
	}
	// Insertion order unless the client asks for a sort
	if sortBy, ok := c.GetQuery("sort_by"); ok {
		nodes = view.Sorted(nodes, view.SortKey(sortBy), c.Query("order") == "desc", true)
	}

	crumbs, err := d.View.Breadcrumbs(parentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":       filesJSON(nodes),
		"total":       len(nodes),
		"breadcrumbs": crumbs,
	})
}

// CreateFolder handles POST /api/files/folder
func (h *FileHandler) CreateFolder(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		ParentID string `json:"parent_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	n, err := d.Store.CreateFolder(req.Name, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fileJSON(n))
}

// GetFileTree handles GET /api/files/tree - Folder hierarchy for move dialogs
func (h *FileHandler) GetFileTree(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       filetree.RootID,
		"name":     view.RootName,
		"children": d.View.FolderTree(),
	})
}

// GetFile handles GET /api/files/:id
func (h *FileHandler) GetFile(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	n, err := d.Store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := fileJSON(n)
	if url, err := d.ContentURL(c.Request.Context(), n); err == nil && url != "" {
		resp["download_url"] = url
	}
	c.JSON(http.StatusOK, resp)
}

// GetBreadcrumbs handles GET /api/files/:id/breadcrumbs
func (h *FileHandler) GetBreadcrumbs(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	crumbs, err := d.View.Breadcrumbs(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"breadcrumbs": crumbs})
}

// RenameFile handles PUT /api/files/:id
func (h *FileHandler) RenameFile(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	n, err := d.Store.Rename(c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fileJSON(n))
}

// MoveFiles handles PUT /api/files/move. Moves stop at the first failure;
// earlier moves stand.
func (h *FileHandler) MoveFiles(c *gin.Context) {
	var req struct {
		IDs      []string `json:"ids" binding:"required"`
		ParentID string   `json:"parent_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	moved := make([]gin.H, 0, len(req.IDs))
	for _, id := range req.IDs {
		n, err := d.Store.Move(id, req.ParentID)
		if err != nil {
			respondError(c, err)
			return
		}
		moved = append(moved, fileJSON(n))
	}
	c.JSON(http.StatusOK, gin.H{"files": moved})
}

// DeleteFile handles DELETE /api/files/:id - Move to trash
func (h *FileHandler) DeleteFile(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	if err := d.Store.SoftDelete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Moved to trash"})
}

// SearchFiles handles GET /api/files/search?q=&type=
func (h *FileHandler) SearchFiles(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	kind := filetree.Kind(c.Query("type"))
	if kind != "" && kind != filetree.KindFile && kind != filetree.KindFolder {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be file or folder"})
		return
	}

	nodes := d.View.Search(c.Query("q"), kind)
	nodes = view.Sorted(nodes, view.SortKey(c.DefaultQuery("sort_by", "name")), c.Query("order") == "desc", true)
	c.JSON(http.StatusOK, gin.H{"files": filesJSON(nodes), "total": len(nodes)})
}

// GetTrash handles GET /api/files/trash
func (h *FileHandler) GetTrash(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	nodes := d.View.ListTrash()
	c.JSON(http.StatusOK, gin.H{"files": filesJSON(nodes), "total": len(nodes)})
}

// RestoreFile handles POST /api/files/restore
func (h *FileHandler) RestoreFile(c *gin.Context) {
	var req struct {
		ID string `json:"id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	if err := d.Store.Restore(req.ID); err != nil {
		respondError(c, err)
		return
	}
	n, err := d.Store.Get(req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fileJSON(n))
}

// PermanentlyDelete handles DELETE /api/files/trash/:id
func (h *FileHandler) PermanentlyDelete(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	removed, err := d.Purge(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var freed int64
	for _, n := range removed {
		freed += n.SizeBytes
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Permanently deleted",
		"removed": len(removed),
		"freed":   freed,
	})
}

// GetCategory handles GET /api/files/category/:category
func (h *FileHandler) GetCategory(c *gin.Context) {
	category, valid := filetree.ParseCategory(c.Param("category"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	nodes := d.View.ListByCategory(category)
	nodes = view.Sorted(nodes, view.SortKey(c.DefaultQuery("sort_by", "created_at")), c.DefaultQuery("order", "desc") == "desc", false)
	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"files":    filesJSON(nodes),
		"total":    len(nodes),
	})
}

// AnalyzeFile handles POST /api/files/:id/analyze. The request may carry the
// file content as multipart field "file".
func (h *FileHandler) AnalyzeFile(c *gin.Context) {
	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}

	var content []byte
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
				return
			}
			content, err = io.ReadAll(io.LimitReader(f, maxAnalyzeBytes))
			f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
				return
			}
		}
	}

	text, err := d.Analyze(c.Request.Context(), h.analyzer, c.Param("id"), content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "analysis": text})
}

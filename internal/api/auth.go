package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopan-drive/internal/auth"
	"gopan-drive/internal/drive"
	"gopan-drive/internal/quota"
)

type AuthHandler struct {
	auth   *auth.Service
	drives *drive.Registry
}

func NewAuthHandler(svc *auth.Service, drives *drive.Registry) *AuthHandler {
	return &AuthHandler{auth: svc, drives: drives}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.auth.Register(req.Username, req.Password, req.Email)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	case errors.Is(err, auth.ErrWeakCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user": gin.H{
			"id":           sess.UserID,
			"username":     sess.Username,
			"display_name": sess.DisplayName,
			"email":        req.Email,
		},
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user": gin.H{
			"id":           sess.UserID,
			"username":     sess.Username,
			"display_name": sess.DisplayName,
		},
	})
}

// Logout handles user logout (client-side token removal)
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns current user information with the active plan
func (h *AuthHandler) Me(c *gin.Context) {
	username := c.GetString("username")
	u, err := h.auth.User(username)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	d, ok := currentDrive(c, h.drives)
	if !ok {
		return
	}
	grant := d.Store.Grant()

	c.JSON(http.StatusOK, gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"created_at": u.CreatedAt,
		"last_login": u.LastLoginAt,
		"vip": gin.H{
			"is_vip":      grant.Tier != quota.TierFree,
			"level":       grant.Tier,
			"name":        grant.DisplayName,
			"quota_limit": grant.Limit,
		},
	})
}

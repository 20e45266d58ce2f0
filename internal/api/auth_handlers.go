package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headless-pm/cloudtask/internal/auth"
	"github.com/headless-pm/cloudtask/internal/authz"
	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/internal/service"
)

type LoginRequest struct {
	// Identifier is a staff id or a username.
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	// Role names the login tab: enterprise, manager or employee.
	Role string `json:"role"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) issueToken(c *gin.Context, u *models.User) (*TokenResponse, bool) {
	token, err := h.jwt.Generate(u.ID, u.Username, string(u.Role))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return &TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(h.jwt.TokenDuration().Seconds()),
		TokenType:   "Bearer",
	}, true
}

// actor returns the authenticated identity. AuthMiddleware guarantees it on protected routes.
func actor(c *gin.Context) authz.Actor {
	a, _ := auth.CurrentActor(c)
	return a
}

func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, org, err := h.svc.RegisterEnterprise(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	tokens, ok := h.issueToken(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"organization": org,
		"tokens":       tokens,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Authenticate(c.Request.Context(), req.Identifier, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.respondError(c, err)
		return
	}
	tokens, ok := h.issueToken(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) ListStaff(c *gin.Context) {
	staff, err := h.svc.ListStaff(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (h *Handler) AddStaff(c *gin.Context) {
	var req service.StaffInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.svc.AddStaff(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

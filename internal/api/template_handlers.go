package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headless-pm/cloudtask/internal/service"
)

type TemplateTaskRequest struct {
	ProjectID    uint  `json:"project_id" binding:"required"`
	AssignedToID *uint `json:"assigned_to_id"`
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.svc.ListTemplates(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req service.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl, err := h.svc.CreateTemplate(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteTemplate(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *Handler) CreateTaskFromTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req TemplateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.svc.CreateTaskFromTemplate(c.Request.Context(), actor(c), id, req.ProjectID, req.AssignedToID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

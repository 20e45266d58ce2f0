package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/internal/service"
)

type MemberRequest struct {
	UserID uint              `json:"user_id" binding:"required"`
	Role   models.MemberRole `json:"role"`
}

type CommentRequest struct {
	Comment string `json:"comment" binding:"required"`
	// StatusChangedTo optionally moves the task together with the comment.
	StatusChangedTo *models.TaskStatus `json:"status_changed_to"`
}

func (h *Handler) ListProjects(c *gin.Context) {
	filter := service.ProjectFilter{
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if s := c.Query("status"); s != "" {
		status := models.ProjectStatus(s)
		filter.Status = &status
	}

	projects, err := h.svc.ListProjects(c.Request.Context(), actor(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, err := h.svc.CreateProject(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.svc.GetProject(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) UpdateProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, err := h.svc.UpdateProject(c.Request.Context(), actor(c), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteProject(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *Handler) AddMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	member, err := h.svc.AddMember(c.Request.Context(), actor(c), id, req.UserID, req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	memberID, ok := parseID(c, "member_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), actor(c), id, memberID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *Handler) ListProjectComments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	comments, err := h.svc.ListProjectComments(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *Handler) AddProjectComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.svc.AddProjectComment(c.Request.Context(), actor(c), id, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headless-pm/cloudtask/internal/models"
	"github.com/headless-pm/cloudtask/internal/service"
	"github.com/headless-pm/cloudtask/internal/storage"
)

type StatusRequest struct {
	Status  models.TaskStatus `json:"status" binding:"required"`
	Comment string            `json:"comment"`
}

type DependencyRequest struct {
	DependsOnID uint `json:"depends_on_id" binding:"required"`
}

// multipartOverhead leaves room for boundaries and form fields around the file part.
const multipartOverhead = 1 << 20

func (h *Handler) ListTasks(c *gin.Context) {
	projectID, ok := queryID(c, "project_id")
	if !ok {
		return
	}
	filter := service.TaskFilter{
		ProjectID: projectID,
		Limit:     queryInt(c, "limit", 0),
		Offset:    queryInt(c, "offset", 0),
	}
	if s := c.Query("status"); s != "" {
		status := models.TaskStatus(s)
		filter.Status = &status
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), actor(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) Board(c *gin.Context) {
	projectID, ok := queryID(c, "project_id")
	if !ok {
		return
	}
	columns, err := h.svc.BoardColumns(c.Request.Context(), actor(c), projectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, columns)
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req service.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.svc.CreateTask(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := h.svc.GetTask(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.svc.UpdateTask(c.Request.Context(), actor(c), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.svc.ChangeStatus(c.Request.Context(), actor(c), id, req.Status, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), actor(c), id, req.Comment, req.StatusChangedTo)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) TaskHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.svc.TaskHistory(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) UploadAttachment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, storage.CheckSize(tooLarge.Limit))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	src, err := file.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer src.Close()

	attachment, err := h.svc.UploadAttachment(c.Request.Context(), actor(c), id, service.Upload{
		Filename: file.Filename,
		Size:     file.Size,
		MimeType: file.Header.Get("Content-Type"),
		Content:  src,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	attID, ok := parseID(c, "att_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAttachment(c.Request.Context(), actor(c), id, attID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *Handler) ListDependencies(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	deps, err := h.svc.ListDependencies(ctx, actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	chain, err := h.svc.DependencyChain(ctx, actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dependencies": deps,
		"chain":        chain,
	})
}

func (h *Handler) AddDependency(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req DependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dep, err := h.svc.AddDependency(c.Request.Context(), actor(c), id, req.DependsOnID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dep)
}

// RemoveDependency takes the depends-on task id as :dep_id.
func (h *Handler) RemoveDependency(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	depID, ok := parseID(c, "dep_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveDependency(c.Request.Context(), actor(c), id, depID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

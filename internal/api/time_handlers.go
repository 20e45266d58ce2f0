package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headless-pm/cloudtask/internal/service"
)

type TimerRequest struct {
	Description string `json:"description"`
}

type TimeEntryRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description"`
}

// bindOptional accepts an empty body for endpoints whose payload is optional.
func bindOptional(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) StartTimer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req TimerRequest
	if !bindOptional(c, &req) {
		return
	}
	result, err := h.svc.StartTimer(c.Request.Context(), actor(c), id, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// StopTimer reports a missing timer as a normal outcome.
func (h *Handler) StopTimer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.svc.StopTimer(c.Request.Context(), actor(c), id)
	if errors.Is(err, service.ErrNoActiveTimer) {
		c.JSON(http.StatusOK, gin.H{"stopped": false, "message": "No active timer on this task"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true, "entry": entry})
}

func (h *Handler) AddTimeEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req TimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.svc.AddManualEntry(c.Request.Context(), actor(c), id, req.DurationMinutes, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) TaskTime(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	summary, err := h.svc.TaskTimeSummary(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ActiveTimer(c *gin.Context) {
	active, err := h.svc.ActiveTimer(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active != nil, "timer": active})
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"habitpact/internal/domain"
	"habitpact/internal/middleware"
	"habitpact/internal/service"

	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	partnerships *service.PartnershipService
	progress     *service.ProgressService
}

func NewProgressHandler(partnerships *service.PartnershipService, progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{partnerships: partnerships, progress: progress}
}

// Record sets the caller's completion for a day (default today, UTC).
func (h *ProgressHandler) Record(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Date      string `json:"date"`
		Completed *bool  `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "completed required"})
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format(domain.DateLayout)
	}
	row, err := h.progress.RecordProgress(c.Request.Context(), c.Param("id"), userID, req.Date, *req.Completed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": row})
}

func (h *ProgressHandler) Clear(c *gin.Context) {
	deleted, err := h.progress.ClearProgress(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// Get reads one participant's state. Either partner may read the other's row.
func (h *ProgressHandler) Get(c *gin.Context) {
	viewer := middleware.GetUserID(c)
	p, err := h.partnerships.AuthorizeParticipant(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	target := viewer
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || !p.IsParticipant(uint(id)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		target = uint(id)
	}
	date := c.DefaultQuery("date", time.Now().UTC().Format(domain.DateLayout))
	state, err := h.progress.GetProgress(c.Request.Context(), p.ID, target, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": target, "date": date, "completed": state.Completed, "streak": state.Streak})
}

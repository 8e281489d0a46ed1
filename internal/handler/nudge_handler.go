package handler

import (
	"net/http"

	"habitpact/internal/middleware"
	"habitpact/internal/service"

	"github.com/gin-gonic/gin"
)

type NudgeHandler struct {
	partnerships *service.PartnershipService
	nudges       *service.NudgeService
}

func NewNudgeHandler(partnerships *service.PartnershipService, nudges *service.NudgeService) *NudgeHandler {
	return &NudgeHandler{partnerships: partnerships, nudges: nudges}
}

func (h *NudgeHandler) Status(c *gin.Context) {
	p, err := h.partnerships.AuthorizeParticipant(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.nudges.Status(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"can_nudge": st.CanNudge, "last_nudged_at": st.LastNudge}
	if !st.CanNudge {
		resp["retry_after_seconds"] = int(st.RetryAfter.Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

// Send nudges the caller's partner; the habit title defaults to the name the partner sees.
func (h *NudgeHandler) Send(c *gin.Context) {
	userID := middleware.GetUserID(c)
	p, err := h.partnerships.AuthorizeParticipant(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	partner := p.CounterpartID(userID)
	title := h.partnerships.HabitDisplayName(c.Request.Context(), p, partner)
	n, err := h.nudges.SendNudge(c.Request.Context(), p.ID, userID, partner, title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nudge": n})
}

// LastTimes returns the last nudge time for each of the caller's active partnerships.
func (h *NudgeHandler) LastTimes(c *gin.Context) {
	userID := middleware.GetUserID(c)
	list, err := h.partnerships.ListActivePartnerships(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]string, 0, len(list))
	for _, v := range list {
		ids = append(ids, v.ID)
	}
	times, err := h.nudges.GetLastNudgeTimes(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_nudged_at": times})
}

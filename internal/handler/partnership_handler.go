package handler

import (
	"net/http"

	"habitpact/internal/domain"
	"habitpact/internal/middleware"
	"habitpact/internal/service"

	"github.com/gin-gonic/gin"
)

type PartnershipHandler struct {
	partnerships *service.PartnershipService
}

func NewPartnershipHandler(partnerships *service.PartnershipService) *PartnershipHandler {
	return &PartnershipHandler{partnerships: partnerships}
}

// Invite creates or revives an invite. An existing pending or accepted partnership is returned as is.
func (h *PartnershipHandler) Invite(c *gin.Context) {
	inviterID := middleware.GetUserID(c)
	var req struct {
		InviteeID       uint   `json:"invitee_id" binding:"required"`
		HabitType       string `json:"habit_type" binding:"required,oneof=core custom"`
		HabitKey        string `json:"habit_key"`
		InviterHabitRef string `json:"inviter_habit_ref"`
		Mode            string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = domain.ModeSupportive
	}
	identifier := req.HabitKey
	if req.HabitType == domain.HabitTypeCustom {
		identifier = req.InviterHabitRef
	}
	p, err := h.partnerships.SendInvite(c.Request.Context(), service.InviteRequest{
		InviterID:  inviterID,
		InviteeID:  req.InviteeID,
		HabitType:  req.HabitType,
		Identifier: identifier,
		Mode:       req.Mode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partnership": p})
}

func (h *PartnershipHandler) Accept(c *gin.Context) {
	p, err := h.partnerships.AcceptInvite(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partnership": p})
}

func (h *PartnershipHandler) Decline(c *gin.Context) {
	if err := h.partnerships.DeclineInvite(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PartnershipHandler) Cancel(c *gin.Context) {
	if err := h.partnerships.CancelInvite(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PartnershipHandler) Remove(c *gin.Context) {
	if err := h.partnerships.RemovePartnership(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PartnershipHandler) ListActive(c *gin.Context) {
	list, err := h.partnerships.ListActivePartnerships(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partnerships": list})
}

func (h *PartnershipHandler) ListPending(c *gin.Context) {
	list, err := h.partnerships.ListPendingInvites(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": list})
}

func (h *PartnershipHandler) InviteOptions(c *gin.Context) {
	opts, err := h.partnerships.InviteOptions(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

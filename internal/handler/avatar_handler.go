package handler

import (
	"net/http"
	"strconv"

	"habitpact/internal/middleware"
	"habitpact/internal/repository"
	"habitpact/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

const maxAvatarBytes = 5 << 20

// AvatarHandler uploads the profile image partners see in their partnership lists.
type AvatarHandler struct {
	cloud    cloudinary.Uploader
	userRepo *repository.UserRepository
}

func NewAvatarHandler(cloud cloudinary.Uploader, userRepo *repository.UserRepository) *AvatarHandler {
	return &AvatarHandler{cloud: cloud, userRepo: userRepo}
}

func (h *AvatarHandler) Upload(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads not configured"})
		return
	}
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxAvatarBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	// One avatar per user; re-uploads overwrite it.
	publicID := "avatar_" + strconv.FormatUint(uint64(userID), 10)
	url, thumb, err := h.cloud.UploadImage(c.Request.Context(), f, "habitpact/avatars", publicID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	if err := h.userRepo.UpdateAvatar(c.Request.Context(), userID, thumb); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "avatar_url": thumb})
}

package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"habitpact/internal/domain"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var rl *domain.RateLimitError
	switch {
	case errors.As(err, &rl):
		c.Header("Retry-After", formatSeconds(rl.RetryAfter.Seconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rl.Error(), "retry_after_seconds": int(math.Ceil(rl.RetryAfter.Seconds()))})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func formatSeconds(s float64) string {
	n := int(math.Ceil(s))
	if n < 1 {
		n = 1
	}
	return strconv.Itoa(n)
}

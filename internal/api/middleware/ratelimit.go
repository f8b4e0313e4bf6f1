package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

// UploadRateLimit rejects clients that exceed the upload budget.
func UploadRateLimit(limiter *services.UploadRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := limiter.Allow(c.ClientIP()); err != nil {
			utils.SendRateLimited(c, err.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

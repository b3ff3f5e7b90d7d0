package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/macilentiores/ChurchStreamGuard/logger"
)

// GlobalPanicRecovery catches handler panics so one bad request cannot
// take the HUD down mid-service.
func GlobalPanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic", "panic", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))

				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

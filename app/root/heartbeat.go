package root

import (
	"net/http"

	"bitwise74/file-api/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Heartbeat answers 200 while the database is reachable
func Heartbeat(c *gin.Context, d *internal.Deps) {
	sqlDB, err := d.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}

	if err != nil {
		c.Status(http.StatusServiceUnavailable)

		zap.L().Error("Heartbeat failed to reach the database", zap.Error(err))
		return
	}

	c.Status(http.StatusOK)
}

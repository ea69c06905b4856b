// Package middleware contains any custom middleware used in the app
package middleware

import (
	"regexp"

	"bitwise74/file-api/pkg/util"

	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-ID"

// IDs set by a proxy in front of the API are kept if they look sane
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewRequestIDMiddleware tags every request with an ID stored as requestID
// and echoed back in the X-Request-ID header
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if !validRequestID.MatchString(requestID) {
			requestID = util.MustRandStr(10)
		}

		c.Set("requestID", requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

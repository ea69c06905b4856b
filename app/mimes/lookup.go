package mimes

import (
	"net/http"

	"bitwise74/file-api/pkg/mimes"

	"github.com/gin-gonic/gin"
)

// Lookup returns the MIME type the registry assigns to a filename
func Lookup(c *gin.Context) {
	entry, err := mimes.Lookup(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     err.Error(),
			"requestID": c.GetString("requestID"),
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Extensions lists every extension the registry knows
func Extensions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    mimes.Version,
		"extensions": mimes.Extensions(),
	})
}

package file

import (
	"net/http"

	"bitwise74/file-api/internal"

	"github.com/gin-gonic/gin"
)

// FileOwns reports whether the caller uploaded a file. It ignores the access
// policy so it also answers for files the caller can't otherwise see.
func FileOwns(c *gin.Context, d *internal.Deps) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	f, err := d.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if caller.Owns(f) {
		c.JSON(http.StatusOK, gin.H{"owns": true})
		return
	}

	c.JSON(http.StatusForbidden, gin.H{"owns": false})
}

package file

import (
	"net/http"

	"bitwise74/file-api/internal"

	"github.com/gin-gonic/gin"
)

// FileURL returns a link the file can be downloaded from directly
func FileURL(c *gin.Context, d *internal.Deps) {
	f, ok := loadFile(c, d)
	if !ok {
		return
	}

	u, err := d.Store.URLFor(c.Request.Context(), f.Location)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url": u,
	})
}

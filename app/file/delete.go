package file

import (
	"net/http"

	"bitwise74/file-api/internal"

	"github.com/gin-gonic/gin"
)

// FileDelete deactivates a file. The blob stays in place.
func FileDelete(c *gin.Context, d *internal.Deps) {
	f, ok := loadFile(c, d)
	if !ok {
		return
	}

	f, err := d.Catalog.SoftDelete(c.Request.Context(), f.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, f)
}

package file

import (
	"net/http"

	"bitwise74/file-api/internal"

	"github.com/gin-gonic/gin"
)

func FileFetch(c *gin.Context, d *internal.Deps) {
	f, ok := loadFile(c, d)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, f)
}

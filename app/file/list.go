package file

import (
	"math"
	"net/http"
	"strconv"

	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"

	"github.com/gin-gonic/gin"
)

const maxPageLimit = 250

// FileList returns the caller's files, newest first. Optional query
// parameters: status (active or deactivated), query (searches the title and
// original filename), page and limit.
func FileList(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")

	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	status := model.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid status filter",
			"requestID": requestID,
		})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid page provided",
			"requestID": requestID,
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 || limit > maxPageLimit {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid limit provided",
			"requestID": requestID,
		})
		return
	}

	if limit > 0 && page > math.MaxInt/limit {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Page is out of range",
			"requestID": requestID,
		})
		return
	}

	files, err := d.Catalog.List(c.Request.Context(), catalog.ListFilter{
		Status:      status,
		UploaderID:  caller.ID,
		NewestFirst: true,
		Query:       c.Query("query"),
		Limit:       limit,
		Offset:      page * limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if files == nil {
		files = []model.File{}
	}

	c.JSON(http.StatusOK, files)
}

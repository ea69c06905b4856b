package file

import (
	"net/http"

	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fileEditOpts struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	OriginName  *string       `json:"originName,omitempty"`
	Status      *model.Status `json:"status,omitempty"`
}

func FileEdit(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")

	var data fileEditOpts
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})

		zap.L().Debug("Failed to read JSON body", zap.Error(err))
		return
	}

	upd := catalog.FileUpdate{
		Title:       data.Title,
		Description: data.Description,
		OriginName:  data.OriginName,
		Status:      data.Status,
	}

	if upd.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No edit options provided",
			"requestID": requestID,
		})
		return
	}

	if data.OriginName != nil && *data.OriginName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Empty name",
			"requestID": requestID,
		})
		return
	}

	f, ok := loadFile(c, d)
	if !ok {
		return
	}

	f, err := d.Catalog.Update(c.Request.Context(), f, upd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, f)
}

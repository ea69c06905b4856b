package file

import (
	"errors"
	"mime"
	"net/http"

	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type downloadRequest struct {
	FileID       string   `json:"file_id" form:"file_id" binding:"required"`
	AllowedTypes []string `json:"allowed_types" form:"allowed_types"`
}

// FileDownload streams the file named in the body. An optional allow list
// restricts which types may be read.
func FileDownload(c *gin.Context, d *internal.Deps) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var data downloadRequest
	if err := c.ShouldBind(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": c.GetString("requestID"),
		})
		return
	}

	serve(c, d, caller, data.FileID, data.AllowedTypes)
}

// FileServe streams the file named by the id path parameter
func FileServe(c *gin.Context, d *internal.Deps) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	serve(c, d, caller, c.Param("id"), nil)
}

func serve(c *gin.Context, d *internal.Deps, caller access.Caller, fileID string, allowList []string) {
	requestID := c.GetString("requestID")

	dl, err := d.Retriever.Fetch(c.Request.Context(), caller, fileID, allowList)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "File content is missing",
				"requestID": requestID,
			})

			zap.L().Warn("Record points to a missing blob", zap.String("fileID", fileID), zap.Error(err))
			return
		}

		respondError(c, err)
		return
	}
	defer dl.Body.Close()

	size := int64(-1)
	if dl.File.MetaData != nil {
		size = dl.File.MetaData.FilesizeInBytes
	}

	c.DataFromReader(http.StatusOK, size, dl.MimeType, dl.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": dl.File.OriginName}),
	})
}

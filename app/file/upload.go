package file

import (
	"errors"
	"net/http"
	"strconv"

	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileUpload accepts either a multipart form with the file under upload_file
// or a raw request body named by the X-Filename header or the filename query
// parameter.
func FileUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")

	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var (
		src      validators.Source
		filename string
		declared string
		softRaw  string
	)

	if c.ContentType() == "multipart/form-data" {
		fh, err := c.FormFile("upload_file")
		if err != nil {
			if tooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error":     "Request body size exceeds limit",
					"requestID": requestID,
				})
				return
			}

			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "No file provided",
				"requestID": requestID,
			})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to open multipart file", zap.String("requestID", requestID), zap.Error(err))
			return
		}
		defer f.Close()

		src = validators.Section(f, fh.Size)
		filename = fh.Filename
		declared = c.PostForm("file_type")
		softRaw = c.PostForm("size_soft_limit_mb")
	} else {
		filename = c.GetHeader("X-Filename")
		if filename == "" {
			filename = c.Query("filename")
		}

		if filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "No filename provided",
				"requestID": requestID,
			})
			return
		}

		spooled, err := validators.Spool(c.Request.Body, d.MaxUploadBytes)
		if err != nil {
			if tooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error":     "Request body size exceeds limit",
					"requestID": requestID,
				})
				return
			}

			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to spool request body", zap.String("requestID", requestID), zap.Error(err))
			return
		}
		defer spooled.Close()

		src = spooled
		declared = c.Query("file_type")
		softRaw = c.Query("size_soft_limit_mb")
	}

	var softLimit *int64
	if softRaw != "" {
		n, err := strconv.ParseInt(softRaw, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "size_soft_limit_mb must be a non negative integer",
				"requestID": requestID,
			})
			return
		}
		softLimit = &n
	}

	res, err := d.Uploader.Upload(c.Request.Context(), service.UploadRequest{
		Caller:       caller,
		Source:       src,
		Filename:     filename,
		DeclaredType: declared,
		SoftLimitMB:  softLimit,
		AllowedTypes: d.AllowedTypes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"upload_key": res.Key,
		"file_id":    res.File.ID,
	})
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

package file

import (
	"errors"
	"net/http"

	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors to a JSON response. Validation errors are
// shown to the user as is, infrastructure errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	var (
		verr    *validators.ValidationError
		partial *service.PartialUploadFailure
		uerr    *service.UploadError
	)

	switch {
	case errors.As(err, &verr):
		code := http.StatusBadRequest
		if errors.Is(err, validators.ErrHardLimitExceeded) || errors.Is(err, validators.ErrSoftLimitExceeded) {
			code = http.StatusRequestEntityTooLarge
		}
		if errors.Is(err, validators.ErrUnsupportedFileType) {
			code = http.StatusUnsupportedMediaType
		}

		c.JSON(code, gin.H{
			"error":     verr.Error(),
			"requestID": requestID,
		})
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "File not found",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrTypeNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
	case errors.Is(err, catalog.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
	case errors.Is(err, catalog.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
	case errors.As(err, &partial):
		// Already logged by the uploader
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to save file record",
			"upload_key": partial.Key,
			"requestID":  requestID,
		})
	case errors.As(err, &uerr) && uerr.Stage == service.StageBlobPut:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Failed to store file",
			"requestID": requestID,
		})

		zap.L().Error("Failed to write blob", zap.String("key", uerr.Key), zap.Error(err), zap.String("requestID", requestID))
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Request failed", zap.Error(err), zap.String("requestID", requestID))
	}
}

// loadFile resolves the caller and the file named by the id path parameter
// and checks the caller may access it. On failure the response is written
// and false is returned.
func loadFile(c *gin.Context, d *internal.Deps) (*model.File, bool) {
	caller, ok := requireCaller(c)
	if !ok {
		return nil, false
	}

	fileID := c.Param("id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": c.GetString("requestID"),
		})
		return nil, false
	}

	f, err := d.Catalog.Get(c.Request.Context(), fileID)
	if err == nil {
		err = d.Policy(caller, f)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	return f, true
}

func requireCaller(c *gin.Context) (access.Caller, bool) {
	caller, err := access.Resolve(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Unauthorized",
			"requestID": c.GetString("requestID"),
		})
		return caller, false
	}

	return caller, true
}

package internal

import (
	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/service"

	"gorm.io/gorm"
)

// Deps is everything the HTTP handlers need
type Deps struct {
	DB        *gorm.DB
	Catalog   *catalog.Catalog
	Store     blob.Store
	Uploader  *service.Uploader
	Retriever *service.Retriever
	// Decides which files a caller may read, change or delete
	Policy access.Policy
	// Applied to every upload, empty accepts any known type
	AllowedTypes []string
	// Caps one-shot request bodies before they are spooled to disk
	MaxUploadBytes int64
}

package validators

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/pkg/mimes"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ExtractMetadata derives the size, MIME type and, for images, the pixel
// dimensions of src. The MIME type comes from the extension of filename.
// Only the image header is decoded.
func ExtractMetadata(src Source, filename string) (*model.MetaData, error) {
	entry, err := lookup(filename)
	if err != nil {
		return nil, err
	}

	meta := &model.MetaData{
		MimeType:        entry.MimeType,
		FilesizeInBytes: src.Size(),
	}

	if mimes.IsImage(entry.MimeType) {
		meta.Width, meta.Height, err = imageDimensions(src, filename, entry.MimeType)
		if err != nil {
			return nil, err
		}
	}

	return meta, nil
}

func lookup(filename string) (mimes.Entry, error) {
	entry, err := mimes.Lookup(filename)
	if err != nil {
		return mimes.Entry{}, &ValidationError{
			Kind:     ErrUnknownExtension,
			Filename: filename,
			Err:      err,
		}
	}

	return entry, nil
}

func imageDimensions(src Source, filename, mimeType string) (int, int, error) {
	cfg, format, err := image.DecodeConfig(Reader(src))
	if err != nil {
		return 0, 0, &ValidationError{
			Kind:     ErrUnsupportedImageFormat,
			Filename: filename,
			Measured: mimeType,
			Err:      err,
		}
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, &ValidationError{
			Kind:     ErrUnsupportedImageFormat,
			Filename: filename,
			Measured: mimeType,
			Err:      fmt.Errorf("%s header reports %dx%d", format, cfg.Width, cfg.Height),
		}
	}

	return cfg.Width, cfg.Height, nil
}

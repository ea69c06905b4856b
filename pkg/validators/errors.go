// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"fmt"

	"bitwise74/file-api/pkg/mimes"
)

var (
	ErrContentTypeMismatch     = errors.New("content type mismatch")
	ErrUnsupportedFileType     = errors.New("unsupported file type")
	ErrSoftLimitExceeded       = errors.New("file exceeds the requested size limit")
	ErrHardLimitExceeded       = errors.New("file too large")
	ErrImageDimensionsExceeded = errors.New("image dimensions too large")
	ErrUnsupportedImageFormat  = errors.New("unsupported image format")
	ErrUnknownExtension        = mimes.ErrUnknownExtension
)

// ValidationError describes why a file was rejected. Kind is one of the
// sentinel errors above and can be matched with errors.Is. Measured and
// Limit hold the offending value and the bound it broke, formatted for
// user facing messages.
type ValidationError struct {
	Kind     error
	Filename string
	Measured string
	Limit    string
	Err      error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrContentTypeMismatch:
		return fmt.Sprintf("file %q is %s, does not match file type %s", e.Filename, e.Measured, e.Limit)
	case ErrUnsupportedFileType:
		return fmt.Sprintf("file type not permitted - %s", e.Measured)
	case ErrSoftLimitExceeded:
		return fmt.Sprintf("file size not permitted - %s bytes > size soft limit of %s bytes", e.Measured, e.Limit)
	case ErrHardLimitExceeded:
		return fmt.Sprintf("file size not permitted - %s bytes > size hard limit of %s bytes", e.Measured, e.Limit)
	case ErrImageDimensionsExceeded:
		return fmt.Sprintf("image dimensions not permitted - %s pixels > allowed %s pixels", e.Measured, e.Limit)
	case ErrUnknownExtension:
		return fmt.Sprintf("file %q has an unknown extension", e.Filename)
	case ErrUnsupportedImageFormat:
		return fmt.Sprintf("file %q could not be decoded as %s", e.Filename, e.Measured)
	}

	return fmt.Sprintf("%v: %s", e.Kind, e.Filename)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// IsValidationError reports whether err came out of the validation pipeline
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

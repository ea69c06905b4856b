package validators

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/pkg/mimes"

	"github.com/gabriel-vasile/mimetype"
)

// BytesPerMB converts the megabyte limits used throughout the API to bytes.
// Limits are decimal megabytes.
const BytesPerMB = 1_000_000

// MBToBytes converts a megabyte limit to bytes, saturating at math.MaxInt64
// instead of overflowing
func MBToBytes(mb int64) int64 {
	if mb > math.MaxInt64/BytesPerMB {
		return math.MaxInt64
	}

	return mb * BytesPerMB
}

// Policy holds the limits a file is checked against. It is immutable once
// built and safe for concurrent use.
type Policy struct {
	HardLimitMB int64
	MaxWidth    int
	MaxHeight   int
	// When set the leading bytes of media files are sniffed and must agree
	// with the type implied by the extension
	SniffContent bool
}

// FileInput is a single file to validate. SoftLimitMB is optional, a nil
// value skips the soft limit check. An empty AllowedTypes accepts every type
// the registry knows.
type FileInput struct {
	Source       Source
	Filename     string
	DeclaredType string
	SoftLimitMB  *int64
	AllowedTypes []string
}

// Validate checks in against the policy. Rules run in a fixed order and the
// first failing rule is reported:
//
//  1. declared content type matches the registry type of the filename
//  2. registry type is in the allow list
//  3. size is within the soft limit, if any
//  4. size is within the hard limit
//  5. image dimensions are within the configured maximum
//
// On success the derived metadata is returned so callers don't need to
// extract it a second time.
func (p *Policy) Validate(in FileInput) (*model.MetaData, error) {
	entry, err := lookup(in.Filename)
	if err != nil {
		return nil, err
	}

	if in.DeclaredType != "" && in.DeclaredType != entry.MimeType {
		return nil, &ValidationError{
			Kind:     ErrContentTypeMismatch,
			Filename: in.Filename,
			Measured: entry.MimeType,
			Limit:    in.DeclaredType,
		}
	}

	if p.SniffContent {
		if err := sniff(in.Source, in.Filename, entry.MimeType); err != nil {
			return nil, err
		}
	}

	if len(in.AllowedTypes) > 0 && !slices.Contains(in.AllowedTypes, entry.MimeType) {
		return nil, &ValidationError{
			Kind:     ErrUnsupportedFileType,
			Filename: in.Filename,
			Measured: entry.MimeType,
			Limit:    strings.Join(in.AllowedTypes, ", "),
		}
	}

	size := in.Source.Size()

	if in.SoftLimitMB != nil && size > MBToBytes(*in.SoftLimitMB) {
		return nil, &ValidationError{
			Kind:     ErrSoftLimitExceeded,
			Filename: in.Filename,
			Measured: strconv.FormatInt(size, 10),
			Limit:    strconv.FormatInt(MBToBytes(*in.SoftLimitMB), 10),
		}
	}

	if hard := MBToBytes(p.HardLimitMB); size > hard {
		return nil, &ValidationError{
			Kind:     ErrHardLimitExceeded,
			Filename: in.Filename,
			Measured: strconv.FormatInt(size, 10),
			Limit:    strconv.FormatInt(hard, 10),
		}
	}

	meta := &model.MetaData{
		MimeType:        entry.MimeType,
		FilesizeInBytes: size,
	}

	if !mimes.IsImage(entry.MimeType) {
		return meta, nil
	}

	meta.Width, meta.Height, err = imageDimensions(in.Source, in.Filename, entry.MimeType)
	if err != nil {
		return nil, err
	}

	if meta.Width > p.MaxWidth || meta.Height > p.MaxHeight {
		return nil, &ValidationError{
			Kind:     ErrImageDimensionsExceeded,
			Filename: in.Filename,
			Measured: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
			Limit:    fmt.Sprintf("%dx%d", p.MaxWidth, p.MaxHeight),
		}
	}

	return meta, nil
}

// sniff compares the detected type of media files with the registry type.
// Text and document formats are skipped since detection for them is
// unreliable. Types only have to agree on the top level type, e.g. a .jfif
// detected as image/jpeg passes.
func sniff(src Source, filename, mimeType string) error {
	top, _, _ := strings.Cut(mimeType, "/")
	if top != "image" && top != "video" && top != "audio" {
		return nil
	}

	detected, err := mimetype.DetectReader(Reader(src))
	if err != nil {
		return fmt.Errorf("failed to detect content type, %w", err)
	}

	detectedTop, _, _ := strings.Cut(detected.String(), "/")
	if detectedTop == top {
		return nil
	}

	return &ValidationError{
		Kind:     ErrContentTypeMismatch,
		Filename: filename,
		Measured: detected.String(),
		Limit:    mimeType,
	}
}

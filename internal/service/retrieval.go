package service

import (
	"context"
	"fmt"
	"io"
	"slices"

	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/pkg/mimes"
)

type Retriever struct {
	Catalog   *catalog.Catalog
	Store     blob.Store
	Authorize access.Policy
}

// NewRetriever returns a retriever that enforces policy. A nil policy allows
// every caller.
func NewRetriever(c *catalog.Catalog, s blob.Store, policy access.Policy) *Retriever {
	if policy == nil {
		policy = access.AllowAll
	}

	return &Retriever{
		Catalog:   c,
		Store:     s,
		Authorize: policy,
	}
}

// Download is an open blob together with its record. The caller must close
// Body.
type Download struct {
	File     *model.File
	MimeType string
	Body     io.ReadCloser
}

// Fetch opens the blob of a file. catalog.ErrNotFound is returned as is. When
// allowList is non-empty the type derived from the original filename must be
// in it or ErrTypeNotPermitted is returned.
func (r *Retriever) Fetch(ctx context.Context, caller access.Caller, fileID string, allowList []string) (*Download, error) {
	f, err := r.Catalog.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if err := r.Authorize(caller, f); err != nil {
		return nil, err
	}

	mimeType := "application/octet-stream"
	entry, lookupErr := mimes.Lookup(f.OriginName)
	if lookupErr == nil {
		mimeType = entry.MimeType
	}

	if len(allowList) > 0 {
		if lookupErr != nil {
			return nil, fmt.Errorf("%w, %w", ErrTypeNotPermitted, lookupErr)
		}

		if !slices.Contains(allowList, entry.MimeType) {
			return nil, fmt.Errorf("%w: %s", ErrTypeNotPermitted, entry.MimeType)
		}
	}

	body, err := r.Store.Get(ctx, f.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s, %w", f.Location, err)
	}

	return &Download{File: f, MimeType: mimeType, Body: body}, nil
}

// DeleteBlob removes a blob without touching the catalog. Callers are
// responsible for deactivating the record first.
func (r *Retriever) DeleteBlob(ctx context.Context, key string) error {
	return r.Store.Delete(ctx, key)
}

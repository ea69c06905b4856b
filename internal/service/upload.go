package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/pkg/util"
	"bitwise74/file-api/pkg/validators"

	"go.uber.org/zap"
)

// Length of the random part of a blob key
const keyTokenLength = 12

// How long the compensating delete may take after the request context is gone
const cleanupTimeout = 30 * time.Second

// Defaults fills the record fields an upload doesn't provide. TitleFormat
// gets the original filename as its only argument.
type Defaults struct {
	TitleFormat string
	Description string
}

type Uploader struct {
	Policy   *validators.Policy
	Catalog  *catalog.Catalog
	Store    blob.Store
	Defaults Defaults
	Log      *zap.Logger
}

func NewUploader(p *validators.Policy, c *catalog.Catalog, s blob.Store, d Defaults) *Uploader {
	if d.TitleFormat == "" {
		d.TitleFormat = "%s uploaded"
	}

	return &Uploader{
		Policy:   p,
		Catalog:  c,
		Store:    s,
		Defaults: d,
		Log:      zap.L(),
	}
}

type UploadRequest struct {
	Caller       access.Caller
	Source       validators.Source
	Filename     string
	DeclaredType string
	SoftLimitMB  *int64
	AllowedTypes []string
}

type UploadResult struct {
	Key  string
	File *model.File
}

// Upload validates the file, writes it to the blob store and creates its
// catalog record. Nothing is written when validation fails. When the record
// can't be created the blob is deleted again and a *PartialUploadFailure is
// returned. Every error is an *UploadError naming the failed stage.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	meta, err := u.Policy.Validate(validators.FileInput{
		Source:       req.Source,
		Filename:     req.Filename,
		DeclaredType: req.DeclaredType,
		SoftLimitMB:  req.SoftLimitMB,
		AllowedTypes: req.AllowedTypes,
	})
	if err != nil {
		uploadsTotal.WithLabelValues(outcomeRejected).Inc()
		return nil, &UploadError{Stage: StageValidate, Err: err}
	}

	token, err := util.RandStr(keyTokenLength)
	if err != nil {
		uploadsTotal.WithLabelValues(outcomeBlobError).Inc()
		return nil, &UploadError{Stage: StageBlobPut, Err: fmt.Errorf("failed to generate key, %w", err)}
	}

	key := path.Join(req.Caller.Namespace, token)

	if err := u.Store.Put(ctx, key, req.Source, meta.MimeType); err != nil {
		uploadsTotal.WithLabelValues(outcomeBlobError).Inc()
		return nil, &UploadError{Stage: StageBlobPut, Key: key, Err: err}
	}

	u.Log.Debug("Blob written", zap.String("key", key), zap.Int64("size", meta.FilesizeInBytes))

	title := fmt.Sprintf(u.Defaults.TitleFormat, req.Filename)

	f, err := u.Catalog.Create(ctx, req.Caller.ID, title, u.Defaults.Description, req.Filename, key, model.StatusActive, meta)
	if err != nil {
		uploadsTotal.WithLabelValues(outcomeCatalogError).Inc()

		failure := &PartialUploadFailure{
			Key: key,
			Record: &model.File{
				UploaderID:  req.Caller.ID,
				Title:       title,
				Description: u.Defaults.Description,
				OriginName:  req.Filename,
				Location:    key,
				Status:      model.StatusActive,
				MetaData:    meta,
			},
			Err: err,
		}

		// The request context may be what failed the insert, the delete
		// still has to go through
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		failure.CleanupErr = u.Store.Delete(cleanupCtx, key)

		u.Log.Error("Failed to create file record after blob write",
			zap.String("key", key),
			zap.Any("record", failure.Record),
			zap.Error(err),
			zap.NamedError("cleanup_error", failure.CleanupErr),
			zap.Bool("orphaned", failure.Orphaned()),
		)

		return nil, &UploadError{Stage: StageCatalogCreate, Key: key, Err: failure}
	}

	uploadsTotal.WithLabelValues(outcomeSuccess).Inc()
	uploadBytesTotal.Add(float64(meta.FilesizeInBytes))

	return &UploadResult{Key: key, File: f}, nil
}

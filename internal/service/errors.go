package service

import (
	"errors"
	"fmt"

	"bitwise74/file-api/internal/model"
)

// Stage names the step of an upload that failed
type Stage string

const (
	StageValidate      Stage = "validate"
	StageBlobPut       Stage = "blob_put"
	StageCatalogCreate Stage = "catalog_create"
)

var ErrTypeNotPermitted = errors.New("file type not permitted")

// UploadError is returned for every failed upload. Key is empty when the
// upload failed before a key was assigned.
type UploadError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *UploadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("upload failed at %s, %v", e.Stage, e.Err)
	}

	return fmt.Sprintf("upload of %s failed at %s, %v", e.Key, e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// PartialUploadFailure means the blob was written but its catalog record
// could not be created. CleanupErr is set when the compensating delete failed
// too, in which case the blob at Key is orphaned and has to be reconciled by
// hand or by the sweeper.
type PartialUploadFailure struct {
	Key        string
	Record     *model.File
	Err        error
	CleanupErr error
}

func (e *PartialUploadFailure) Error() string {
	if e.CleanupErr != nil {
		return fmt.Sprintf("failed to create record for %s, %v; failed to delete blob, %v", e.Key, e.Err, e.CleanupErr)
	}

	return fmt.Sprintf("failed to create record for %s, %v; blob deleted", e.Key, e.Err)
}

func (e *PartialUploadFailure) Unwrap() []error {
	if e.CleanupErr == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.CleanupErr}
}

// Orphaned reports whether the blob is still in the store
func (e *PartialUploadFailure) Orphaned() bool {
	return e.CleanupErr != nil
}

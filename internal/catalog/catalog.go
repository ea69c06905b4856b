// Package catalog owns the lifecycle of file records. It generates ids,
// stamps timestamps and enforces the allowed status transitions. Persistence
// is delegated to a Repository.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/file-api/internal/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrInvalidStatus     = errors.New("invalid file status")
	ErrInvalidTransition = errors.New("deactivated files can't be reactivated")
)

// Repository persists file records. Implementations must return ErrNotFound
// from FindByID and Update when no record with the id exists.
type Repository interface {
	Insert(ctx context.Context, f *model.File) error
	Update(ctx context.Context, f *model.File) error
	FindByID(ctx context.Context, id string) (*model.File, error)
	FindAll(ctx context.Context, filter ListFilter) ([]model.File, error)
}

// ListFilter narrows List results. Zero values match everything. Results are
// ordered by ascending id unless NewestFirst is set, in which case they are
// ordered by descending creation time.
type ListFilter struct {
	Status      model.Status
	UploaderID  string
	Location    string
	NewestFirst bool
	// Case insensitive substring of the title or original filename
	Query string
	// Page through the results. A zero Limit returns everything.
	Limit  int
	Offset int
}

// FileUpdate is a sparse update. Only non-nil fields are applied, so a nil
// Title leaves the title untouched while a pointer to "" clears it.
type FileUpdate struct {
	Title       *string
	Description *string
	OriginName  *string
	Location    *string
	Status      *model.Status
	MetaData    *model.MetaData
}

// Empty reports whether upd changes nothing
func (u FileUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.OriginName == nil &&
		u.Location == nil && u.Status == nil && u.MetaData == nil
}

type Catalog struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Catalog {
	return &Catalog{
		repo: repo,
		now:  time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.now = now
	return c
}

func (c *Catalog) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// Create stores a new record with a fresh id. An empty status defaults to
// active. meta may be nil for records created without an upload.
func (c *Catalog) Create(ctx context.Context, ownerID, title, description, originName, location string, status model.Status, meta *model.MetaData) (*model.File, error) {
	if status == "" {
		status = model.StatusActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := c.timestamp()

	f := &model.File{
		ID:          uuid.NewString(),
		UploaderID:  ownerID,
		Title:       title,
		Description: description,
		OriginName:  originName,
		Location:    location,
		Status:      status,
		MetaData:    meta,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	if err := c.repo.Insert(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to insert file record, %w", err)
	}

	return f, nil
}

// Update applies the non-nil fields of upd to a copy of rec and persists it.
// ModifiedAt always ends up strictly after its previous value. rec itself is
// never modified.
func (c *Catalog) Update(ctx context.Context, rec *model.File, upd FileUpdate) (*model.File, error) {
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
		}

		if rec.Status == model.StatusDeactivated && *upd.Status == model.StatusActive {
			return nil, ErrInvalidTransition
		}
	}

	f := *rec

	if upd.Title != nil {
		f.Title = *upd.Title
	}
	if upd.Description != nil {
		f.Description = *upd.Description
	}
	if upd.OriginName != nil {
		f.OriginName = *upd.OriginName
	}
	if upd.Location != nil {
		f.Location = *upd.Location
	}
	if upd.Status != nil {
		f.Status = *upd.Status
	}
	if upd.MetaData != nil {
		meta := *upd.MetaData
		f.MetaData = &meta
	}

	f.ModifiedAt = c.bump(rec.ModifiedAt)

	if err := c.repo.Update(ctx, &f); err != nil {
		return nil, fmt.Errorf("failed to update file record, %w", err)
	}

	return &f, nil
}

// bump returns the current time, or prev plus a microsecond when the clock
// hasn't moved past prev
func (c *Catalog) bump(prev time.Time) time.Time {
	now := c.timestamp()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}

	return now
}

// Get returns the record with the given id or ErrNotFound
func (c *Catalog) Get(ctx context.Context, id string) (*model.File, error) {
	f, err := c.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch file record, %w", err)
	}

	return f, nil
}

func (c *Catalog) List(ctx context.Context, filter ListFilter) ([]model.File, error) {
	files, err := c.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list file records, %w", err)
	}

	return files, nil
}

// SoftDelete deactivates a record. Deactivating a record that is already
// deactivated returns it unchanged.
func (c *Catalog) SoftDelete(ctx context.Context, id string) (*model.File, error) {
	f, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if f.Status == model.StatusDeactivated {
		return f, nil
	}

	status := model.StatusDeactivated
	return c.Update(ctx, f, FileUpdate{Status: &status})
}

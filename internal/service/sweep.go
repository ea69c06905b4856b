package service

import (
	"context"
	"fmt"
	"time"

	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/catalog"

	"go.uber.org/zap"
)

// Sweeper deletes blobs that have no catalog record. Such blobs are left
// behind when an upload is interrupted between the blob write and the record
// insert. Blobs younger than Grace are skipped so in flight uploads are safe.
type Sweeper struct {
	Lister  blob.Lister
	Store   blob.Store
	Catalog *catalog.Catalog
	Grace   time.Duration
	Log     *zap.Logger

	now func() time.Time
}

func NewSweeper(l blob.Lister, s blob.Store, c *catalog.Catalog, grace time.Duration) *Sweeper {
	return &Sweeper{
		Lister:  l,
		Store:   s,
		Catalog: c,
		Grace:   grace,
		Log:     zap.L(),
		now:     time.Now,
	}
}

// Sweep runs a single pass and returns the number of deleted blobs
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := s.Lister.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs, %w", err)
	}

	cutoff := s.now().Add(-s.Grace)
	deleted := 0

	for _, o := range objects {
		if o.ModifiedAt.After(cutoff) {
			continue
		}

		files, err := s.Catalog.List(ctx, catalog.ListFilter{Location: o.Key})
		if err != nil {
			return deleted, err
		}

		if len(files) > 0 {
			continue
		}

		if err := s.Store.Delete(ctx, o.Key); err != nil {
			s.Log.Error("Failed to delete orphaned blob", zap.String("key", o.Key), zap.Error(err))
			continue
		}

		s.Log.Info("Deleted orphaned blob", zap.String("key", o.Key), zap.Time("modified_at", o.ModifiedAt))
		sweptBlobsTotal.Inc()
		deleted++
	}

	return deleted, nil
}

// Start runs Sweep every t until ctx is done
func (s *Sweeper) Start(ctx context.Context, t time.Duration) {
	ticker := time.NewTicker(t)

	s.Log.Debug("Orphan sweeper attached", zap.Duration("tick_every", t), zap.Duration("grace", s.Grace))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx)
				if err != nil {
					s.Log.Error("Orphan sweep failed", zap.Error(err))
					continue
				}

				if n > 0 {
					s.Log.Debug("Orphan sweep finished", zap.Int("deleted", n))
				}
			}
		}
	}()
}

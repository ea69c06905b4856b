// Package local stores objects on the local filesystem
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/pkg/validators"
)

type Storage struct {
	rootPath  string
	publicURL string
}

var (
	_ blob.Store  = (*Storage)(nil)
	_ blob.Lister = (*Storage)(nil)
)

// New creates the root directory if needed. publicURL is the prefix URLFor
// puts in front of keys, e.g. a static file server in front of rootPath.
func New(rootPath, publicURL string) (*Storage, error) {
	p := filepath.Clean(rootPath)

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s, %w", p, err)
	}

	return &Storage{
		rootPath:  p,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s *Storage) fullPath(key string) (string, error) {
	if !blob.ValidKey(key) {
		return "", fmt.Errorf("%w: %q", blob.ErrInvalidKey, key)
	}

	return filepath.Join(s.rootPath, filepath.FromSlash(key)), nil
}

func (s *Storage) Put(ctx context.Context, key string, src validators.Source, _ string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create subdirectories, %w", err)
	}

	// Written under a temporary name so a failed copy never leaves a
	// truncated object behind the real key
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create destination file, %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: validators.Reader(src)})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to copy file data, %w", err)
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move file into place, %w", err)
	}

	return nil
}

func (s *Storage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to open file, %w", err)
	}

	return f, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file, %w", err)
	}

	return nil
}

func (s *Storage) URLFor(_ context.Context, key string) (string, error) {
	if !blob.ValidKey(key) {
		return "", fmt.Errorf("%w: %q", blob.ErrInvalidKey, key)
	}

	if s.publicURL == "" {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.rootPath, key))}).String(), nil
	}

	return url.JoinPath(s.publicURL, key)
}

// List walks the storage root and returns every object whose key starts
// with prefix. Temporary files of in flight writes are skipped.
func (s *Storage) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	var objects []blob.Object

	err := filepath.WalkDir(s.rootPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}

		rel, err := filepath.Rel(s.rootPath, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objects = append(objects, blob.Object{Key: key, ModifiedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files, %w", err)
	}

	return objects, nil
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}

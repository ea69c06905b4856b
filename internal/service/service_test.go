package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"bitwise74/file-api/db"
	"bitwise74/file-api/internal/access"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/repository"
	"bitwise74/file-api/pkg/validators"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is a recording in memory blob store
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	types    map[string]string
	puts     int
	deletes  []string

	putErr    error
	deleteErr error
}

var (
	_ blob.Store  = (*memStore)(nil)
	_ blob.Lister = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		objects:  make(map[string][]byte),
		modified: make(map[string]time.Time),
		types:    make(map[string]string),
	}
}

func (m *memStore) Put(_ context.Context, key string, src validators.Source, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.putErr != nil {
		return m.putErr
	}

	b, err := io.ReadAll(validators.Reader(src))
	if err != nil {
		return err
	}

	m.objects[key] = b
	m.types[key] = contentType
	m.modified[key] = time.Now()
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes = append(m.deletes, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}

	delete(m.objects, key)
	return nil
}

func (m *memStore) URLFor(_ context.Context, key string) (string, error) {
	return "mem://" + key, nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]blob.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []blob.Object
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, blob.Object{Key: k, ModifiedAt: m.modified[k]})
		}
	}

	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	return ok
}

// failingRepo fails every insert
type failingRepo struct {
	catalog.Repository
	err error
}

func (f *failingRepo) Insert(context.Context, *model.File) error {
	return f.err
}

func newTestRepo(t *testing.T) *repository.Files {
	t.Helper()

	conn, err := db.New("sqlite", ":memory:")
	require.NoError(t, err)

	return repository.NewFiles(conn)
}

type testEnv struct {
	store    *memStore
	catalog  *catalog.Catalog
	uploader *Uploader
}

func newTestEnv(t *testing.T, repo catalog.Repository) *testEnv {
	t.Helper()

	if repo == nil {
		repo = newTestRepo(t)
	}

	store := newMemStore()
	cat := catalog.New(repo)

	u := NewUploader(&validators.Policy{
		HardLimitMB: 50,
		MaxWidth:    4096,
		MaxHeight:   4096,
	}, cat, store, Defaults{Description: "A file was uploaded"})
	u.Log = zap.NewNop()

	return &testEnv{store: store, catalog: cat, uploader: u}
}

var alice = access.Caller{ID: "user-1", Namespace: "alice"}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))

	return buf.Bytes()
}

var errBoom = errors.New("boom")

var catalogFilterAll = catalog.ListFilter{}

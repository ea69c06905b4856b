package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	res, err := env.uploader.Upload(ctx, UploadRequest{
		Caller:   alice,
		Source:   strings.NewReader("kept"),
		Filename: "notes.txt",
	})
	require.NoError(t, err)

	// soft deleted records still own their blob
	deleted, err := env.uploader.Upload(ctx, UploadRequest{
		Caller:   alice,
		Source:   strings.NewReader("deactivated"),
		Filename: "old.txt",
	})
	require.NoError(t, err)
	_, err = env.catalog.SoftDelete(ctx, deleted.File.ID)
	require.NoError(t, err)

	require.NoError(t, env.store.Put(ctx, "alice/orphan", strings.NewReader("x"), ""))

	s := NewSweeper(env.store, env.store, env.catalog, time.Hour)
	s.Log = zap.NewNop()

	t.Run("young blobs are skipped", func(t *testing.T) {
		n, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.True(t, env.store.has("alice/orphan"))
	})

	t.Run("old orphans are deleted", func(t *testing.T) {
		s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		n, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		assert.False(t, env.store.has("alice/orphan"))
		assert.True(t, env.store.has(res.Key))
		assert.True(t, env.store.has(deleted.Key))
	})
}

func TestSweeperStartStops(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, env.store.Put(context.Background(), "alice/orphan", strings.NewReader("x"), ""))

	s := NewSweeper(env.store, env.store, env.catalog, 0)
	s.Log = zap.NewNop()
	s.now = func() time.Time { return time.Now().Add(time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !env.store.has("alice/orphan")
	}, 2*time.Second, 10*time.Millisecond)
}

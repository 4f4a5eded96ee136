package memory_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "test/object/key"
	testData := "Hello, World! This is test data."

	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(src, []byte(testData), 0600))

	t.Run("Put", func(t *testing.T) {
		location, err := backend.Put(ctx, testKey, src, false)
		assert.NoError(t, err)
		assert.Equal(t, "memory://"+testKey, location)
	})

	t.Run("PutExisting", func(t *testing.T) {
		_, err := backend.Put(ctx, testKey, src, false)
		assert.ErrorIs(t, err, simpleupload.ErrFileExists)

		_, err = backend.Put(ctx, testKey, src, true)
		assert.NoError(t, err)
	})

	t.Run("Open", func(t *testing.T) {
		reader, err := backend.Open(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := backend.Exists(ctx, testKey)
		assert.NoError(t, err)
		assert.True(t, exists)

		exists, err = backend.Exists(ctx, "missing")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		err := backend.Delete(ctx, testKey)
		assert.NoError(t, err)

		_, err = backend.Open(ctx, testKey)
		assert.ErrorIs(t, err, simpleupload.ErrFileNotFound)

		err = backend.Delete(ctx, testKey)
		assert.ErrorIs(t, err, simpleupload.ErrFileNotFound)
	})

	t.Run("MissingSource", func(t *testing.T) {
		_, err := backend.Put(ctx, "other", filepath.Join(t.TempDir(), "absent"), true)
		assert.ErrorIs(t, err, simpleupload.ErrFileNotFound)
	})
}

func TestMemoryBackend_PutBytes(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()

	data := []byte("abc")
	_, err := backend.PutBytes(ctx, "k", data, true)
	require.NoError(t, err)
	data[0] = 'z'

	reader, err := backend.Open(ctx, "k")
	require.NoError(t, err)
	got, _ := io.ReadAll(reader)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, []string{"k"}, backend.Keys())

	_, err = backend.PutBytes(ctx, "", data, true)
	assert.ErrorIs(t, err, simpleupload.ErrInvalidKey)
}

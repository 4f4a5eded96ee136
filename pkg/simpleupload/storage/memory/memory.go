package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Scheme prefixes the locations returned by Put.
const Scheme = "memory://"

// Backend is an in-memory implementation of the simpleupload.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Put reads sourcePath from the local filesystem and stores it under key
func (b *Backend) Put(ctx context.Context, key, sourcePath string, overwrite bool) (string, error) {
	if key == "" {
		return "", simpleupload.ErrInvalidKey
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: source %s", simpleupload.ErrFileNotFound, sourcePath)
		}
		return "", fmt.Errorf("failed to read source file: %w", err)
	}

	return b.put(key, data, overwrite)
}

// PutBytes stores data under key
func (b *Backend) PutBytes(ctx context.Context, key string, data []byte, overwrite bool) (string, error) {
	if key == "" {
		return "", simpleupload.ErrInvalidKey
	}
	return b.put(key, bytes.Clone(data), overwrite)
}

func (b *Backend) put(key string, data []byte, overwrite bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; exists && !overwrite {
		return "", fmt.Errorf("%w: %s", simpleupload.ErrFileExists, key)
	}
	b.objects[key] = data
	return Scheme + key, nil
}

// Open returns a reader over a copy-free view of the stored bytes
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", simpleupload.ErrFileNotFound, key)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether key is stored
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[key]
	return exists, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return fmt.Errorf("%w: %s", simpleupload.ErrFileNotFound, key)
	}

	delete(b.objects, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

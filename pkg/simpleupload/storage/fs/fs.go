package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Backend is a filesystem implementation of the simpleupload.BlobStore interface
type Backend struct {
	baseDir string
	dirMode os.FileMode
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string      // Root storage directory, keys are resolved below it
	DirMode os.FileMode // Mode for created directories (default 0755)
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	dirMode := config.DirMode
	if dirMode == 0 {
		dirMode = 0755
	}

	if err := os.MkdirAll(baseDir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: baseDir,
		dirMode: dirMode,
	}, nil
}

// BaseDir returns the absolute root storage directory.
func (b *Backend) BaseDir() string {
	return b.baseDir
}

// path maps key to a file below baseDir.
func (b *Backend) path(key string) (string, error) {
	if key == "" {
		return "", simpleupload.ErrInvalidKey
	}
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if p == b.baseDir || !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", simpleupload.ErrInvalidKey, key)
	}
	return p, nil
}

// Put copies sourcePath to key and returns the absolute path of the stored file.
// The content is written to a temporary file in the destination directory and
// renamed into place, so readers never observe a partial file.
func (b *Backend) Put(ctx context.Context, key, sourcePath string, overwrite bool) (string, error) {
	filePath, err := b.path(key)
	if err != nil {
		return "", err
	}

	if !overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return "", fmt.Errorf("%w: %s", simpleupload.ErrFileExists, key)
		}
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: source %s", simpleupload.ErrFileNotFound, sourcePath)
		}
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, b.dirMode); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: src}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}

	if overwrite {
		if err := os.Rename(tmpName, filePath); err != nil {
			return "", fmt.Errorf("failed to move file into place: %w", err)
		}
		return filePath, nil
	}

	// Link fails if the destination appeared since the Stat above.
	if err := os.Link(tmpName, filePath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", simpleupload.ErrFileExists, key)
		}
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return filePath, nil
}

// Open opens a stored file for reading
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := b.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", simpleupload.ErrFileNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists reports whether key is stored
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := b.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to get file info: %w", err)
	}
	return !info.IsDir(), nil
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", simpleupload.ErrFileNotFound, key)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

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

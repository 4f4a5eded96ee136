// Package recognizer detects the MIME type and encoding of stored files using
// an ordered chain of recognizers, where later recognizers may refine the
// result of earlier ones (for example text/plain into text/csv).
package recognizer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrNotRecognized indicates the recognizer found nothing it could report
	ErrNotRecognized = errors.New("content not recognized")

	// ErrFileNotFound indicates the file to inspect does not exist
	ErrFileNotFound = errors.New("file not found")
)

// Result is what a recognizer reports. Empty fields mean "unknown".
type Result struct {
	MimeType string
	Encoding string
}

// File is a handle on the content to inspect. Open may be called more than once.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Recognizer inspects a file and reports its type and encoding.
type Recognizer interface {
	// Name returns the registry name of the recognizer
	Name() string

	// CanImprove reports whether the recognizer may refine an already detected type
	CanImprove(mimeType string) bool

	// Recognize inspects f. current carries what earlier recognizers found.
	Recognize(ctx context.Context, f File, current Result) (Result, error)
}

type localFile struct {
	path string
}

// LocalFile returns a File backed by a path on the local filesystem.
func LocalFile(path string) File {
	return localFile{path: path}
}

func (f localFile) Name() string {
	return filepath.Base(f.path)
}

func (f localFile) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return file, err
}

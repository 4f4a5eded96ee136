package simpleupload

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrFileNotFound indicates a stored file does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrFileExists indicates the destination exists and overwriting is disabled
	ErrFileExists = errors.New("file already exists")

	// ErrInvalidKey indicates a storage key that escapes the storage root
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrRecordNotFound indicates a record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidRecordID indicates a record without an id was saved
	ErrInvalidRecordID = errors.New("invalid record id")

	// ErrBlobStoreRequired indicates a behavior was configured without storage
	ErrBlobStoreRequired = errors.New("blob store is required")

	// ErrPathTemplateRequired indicates a managed field without a path template
	ErrPathTemplateRequired = errors.New("path template is required")

	// ErrFieldNameRequired indicates a managed field without a name
	ErrFieldNameRequired = errors.New("field name is required")
)

// ConfigurationError reports an invalid setup. It is fatal for initialization.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid upload configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid upload configuration for field %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// UploadError reports an upload descriptor carrying an error code other than
// "no file submitted".
type UploadError struct {
	Field string
	Code  int
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload for field %s failed with error code %d", e.Field, e.Code)
}

// PathResolutionError reports a template that could not be resolved.
type PathResolutionError struct {
	Field    string
	Template string
	Err      error
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("could not get the upload path for field %s from %q: %v", e.Field, e.Template, e.Err)
}

func (e *PathResolutionError) Unwrap() error {
	return e.Err
}

// CopyError reports a failure to move an upload into place.
type CopyError struct {
	Field string
	Key   string
	Err   error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("failed to move upload for field %s to %s: %v", e.Field, e.Key, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// FileError reports a failed operation on a stored file of a record.
type FileError struct {
	Field string
	Key   string
	Op    string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for field %s (%s): %v", e.Op, e.Field, e.Key, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

package simpleupload

import (
	"context"
	"io"
)

// Entity is the record being saved or deleted. It is supplied by the
// persistence layer and exposes named-field access.
type Entity interface {
	// ID returns the record identifier, empty for records not yet persisted
	ID() string

	// Get returns the value of a field and whether it is set
	Get(field string) (any, bool)

	// Set assigns a field value
	Set(field string, value any)
}

// Unsetter is implemented by entities that can drop a field entirely. It is
// used to clear the virtual upload attribute after processing.
type Unsetter interface {
	Unset(field string)
}

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Put copies the local file at sourcePath to key, creating intermediate
	// directories as needed. When overwrite is false and key exists, Put
	// returns ErrFileExists. It returns the absolute location of the stored file.
	Put(ctx context.Context, key, sourcePath string, overwrite bool) (string, error)

	// Open opens a stored file for reading
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is stored
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. It returns ErrFileNotFound when key is absent.
	Delete(ctx context.Context, key string) error
}

// ReferenceCounter reports how many records currently store value in field.
//
// The count is read without coordination with the subsequent file delete, so
// two concurrent deletes of records sharing a file may both see themselves
// as the last reference. With repo/postgres, run BeforeDelete and the record
// delete inside RunInTx and pass the transaction's repository as
// DeleteOptions.References so the count locks the matching rows.
type ReferenceCounter interface {
	CountReferences(ctx context.Context, field, value string) (int, error)
}

// Repository persists records for collaborators without their own storage. It
// also answers reference counts over the records it holds.
type Repository interface {
	ReferenceCounter

	SaveRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id string) (*Record, error)
	DeleteRecord(ctx context.Context, id string) error
	ListRecords(ctx context.Context) ([]*Record, error)
}

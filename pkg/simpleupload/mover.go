package simpleupload

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
)

// Mover moves uploads into place and removes files that are no longer used.
type Mover struct {
	store  BlobStore
	logger *slog.Logger
	hooks  *Hooks
}

// NewMover creates a mover over store. logger and hooks may be nil.
func NewMover(store BlobStore, logger *slog.Logger, hooks *Hooks) *Mover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{store: store, logger: logger, hooks: hooks}
}

// MoveIntoPlace copies sourcePath to destKey and returns the stored location.
//
// When field.Overwrite is set, the file previously stored for the field is
// removed first. Failing to remove it is logged and does not stop the move.
func (m *Mover) MoveIntoPlace(ctx context.Context, sourcePath, destKey, previous string, field FieldConfig) (string, error) {
	if field.Overwrite {
		deleted, err := m.DeleteStale(ctx, previous, destKey, field)
		switch {
		case err != nil:
			m.logger.Warn("failed to delete previous upload",
				"field", field.Name, "previous", previous, "err", err)
			m.hooks.executeOnError(ctx, "delete_stale", err)
		case deleted:
			m.logger.Debug("deleted previous upload", "field", field.Name, "previous", previous)
			m.hooks.executeAfterStaleDeleted(ctx, field.Name, strings.TrimPrefix(previous, field.Prefix))
		}
	}

	location, err := m.store.Put(ctx, destKey, sourcePath, field.Overwrite)
	if err != nil {
		return "", &CopyError{Field: field.Name, Key: destKey, Err: err}
	}
	return location, nil
}

// DeleteStale removes the file referenced by previous unless it shares its
// base name with newKey or with the field's default file. It reports whether
// a file was removed.
func (m *Mover) DeleteStale(ctx context.Context, previous, newKey string, field FieldConfig) (bool, error) {
	if previous == "" {
		return false, nil
	}
	base := path.Base(previous)
	if base == path.Base(newKey) || isDefaultFile(base, field.DefaultFile) {
		return false, nil
	}

	key := strings.TrimPrefix(previous, field.Prefix)
	if err := m.store.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, &FileError{Field: field.Name, Key: key, Op: "delete_stale", Err: err}
	}
	return true, nil
}

// DeleteOnRecordRemoval removes the file stored in entity's field when no other
// record references it. A missing file, a shared file and the default file
// all count as success.
func (m *Mover) DeleteOnRecordRemoval(ctx context.Context, entity Entity, field FieldConfig, refs ReferenceCounter) error {
	if !field.UnlinkOnDelete {
		return nil
	}

	stored := stringValue(entity, field.Name)
	if stored == "" || isDefaultFile(path.Base(stored), field.DefaultFile) {
		return nil
	}
	key := strings.TrimPrefix(stored, field.Prefix)

	if refs != nil {
		count, err := refs.CountReferences(ctx, field.Name, stored)
		if err != nil {
			return &FileError{Field: field.Name, Key: key, Op: "count_references", Err: err}
		}
		if count > 1 {
			m.logger.Info("keeping shared upload",
				"id", entity.ID(), "field", field.Name, "key", key, "references", count)
			m.hooks.executeOnSharedFileKept(ctx, entity, field.Name, key, count)
			return nil
		}
	}

	if err := m.store.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			m.logger.Debug("upload already gone", "id", entity.ID(), "field", field.Name, "key", key)
			return nil
		}
		return &FileError{Field: field.Name, Key: key, Op: "delete", Err: err}
	}

	m.hooks.executeAfterFileDeleted(ctx, entity, field.Name, key)
	return nil
}

func isDefaultFile(base, defaultFile string) bool {
	return defaultFile != "" && base == path.Base(defaultFile)
}

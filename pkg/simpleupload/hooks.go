package simpleupload

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-upload/pkg/simpleupload/recognizer"
)

// Hook system allows observing the upload lifecycle without modifying core code.
// Hooks are called at specific points while saving and deleting records.

// Hooks defines all available lifecycle hooks
type Hooks struct {
	// Save hooks
	AfterFileStored     []AfterFileStoredHook
	AfterFileRecognized []AfterFileRecognizedHook
	AfterStaleDeleted   []StaleDeletedHook

	// Delete hooks
	AfterFileDeleted []AfterFileDeletedHook
	OnSharedFileKept []SharedFileKeptHook

	// Error hooks
	OnError []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Metadata  map[string]interface{} // Custom metadata passed between hooks
	StopChain bool                   // Set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]interface{}),
	}
}

// AfterFileStoredHook is called once an upload is in place. Returning an error aborts the save.
type AfterFileStoredHook func(hctx *HookContext, entity Entity, field, location string) error

// AfterFileRecognizedHook is called with the final recognition result.
type AfterFileRecognizedHook func(hctx *HookContext, entity Entity, field string, result recognizer.Result) error

// StaleDeletedHook is called after a superseded file was removed.
type StaleDeletedHook func(hctx *HookContext, field, key string)

// AfterFileDeletedHook is called after a record's file was removed. The file is
// already gone, so the hook cannot fail the delete.
type AfterFileDeletedHook func(hctx *HookContext, entity Entity, field, key string)

// SharedFileKeptHook is called when a file survives a delete because other records reference it.
type SharedFileKeptHook func(hctx *HookContext, entity Entity, field, key string, references int)

// ErrorHook is called when an error occurs, fatal or not
type ErrorHook func(hctx *HookContext, operation string, err error)

// Merge appends the hooks of others to h and returns h.
func (h *Hooks) Merge(others ...*Hooks) *Hooks {
	for _, o := range others {
		if o == nil {
			continue
		}
		h.AfterFileStored = append(h.AfterFileStored, o.AfterFileStored...)
		h.AfterFileRecognized = append(h.AfterFileRecognized, o.AfterFileRecognized...)
		h.AfterStaleDeleted = append(h.AfterStaleDeleted, o.AfterStaleDeleted...)
		h.AfterFileDeleted = append(h.AfterFileDeleted, o.AfterFileDeleted...)
		h.OnSharedFileKept = append(h.OnSharedFileKept, o.OnSharedFileKept...)
		h.OnError = append(h.OnError, o.OnError...)
	}
	return h
}

// Hook execution helpers

func (h *Hooks) executeAfterFileStored(ctx context.Context, entity Entity, field, location string) error {
	if h == nil || len(h.AfterFileStored) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterFileStored {
		if err := hook(hctx, entity, field, location); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterFileRecognized(ctx context.Context, entity Entity, field string, result recognizer.Result) error {
	if h == nil || len(h.AfterFileRecognized) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterFileRecognized {
		if err := hook(hctx, entity, field, result); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterStaleDeleted(ctx context.Context, field, key string) {
	if h == nil || len(h.AfterStaleDeleted) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterStaleDeleted {
		hook(hctx, field, key)
		if hctx.StopChain {
			break
		}
	}
}

func (h *Hooks) executeAfterFileDeleted(ctx context.Context, entity Entity, field, key string) {
	if h == nil || len(h.AfterFileDeleted) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterFileDeleted {
		hook(hctx, entity, field, key)
		if hctx.StopChain {
			break
		}
	}
}

func (h *Hooks) executeOnSharedFileKept(ctx context.Context, entity Entity, field, key string, references int) {
	if h == nil || len(h.OnSharedFileKept) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnSharedFileKept {
		hook(hctx, entity, field, key, references)
		if hctx.StopChain {
			break
		}
	}
}

func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	if h == nil || len(h.OnError) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnError {
		hook(hctx, operation, err)
		if hctx.StopChain {
			break
		}
	}
}

// Common hook implementations

// LoggingHook logs stored, recognized and deleted files.
func LoggingHook(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		AfterFileStored: []AfterFileStoredHook{
			func(hctx *HookContext, entity Entity, field, location string) error {
				logger.Info("upload stored", "id", entity.ID(), "field", field, "location", location)
				return nil
			},
		},
		AfterFileRecognized: []AfterFileRecognizedHook{
			func(hctx *HookContext, entity Entity, field string, result recognizer.Result) error {
				logger.Info("upload recognized", "id", entity.ID(), "field", field,
					"mime", result.MimeType, "encoding", result.Encoding)
				return nil
			},
		},
		AfterFileDeleted: []AfterFileDeletedHook{
			func(hctx *HookContext, entity Entity, field, key string) {
				logger.Info("upload deleted", "id", entity.ID(), "field", field, "key", key)
			},
		},
		OnError: []ErrorHook{
			func(hctx *HookContext, operation string, err error) {
				logger.Error("upload operation failed", "op", operation, "err", err)
			},
		},
	}
}

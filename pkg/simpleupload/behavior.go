package simpleupload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload/pathtemplate"
	"github.com/tendant/simple-upload/pkg/simpleupload/recognizer"
)

// Defaults applied by New.
const (
	DefaultSuffix        = "_file"
	DefaultMimeField     = "mime"
	DefaultEncodingField = "encoding"
	DefaultMimeType      = "application/octet-stream"
	DefaultEncoding      = "binary"
)

// Behavior handles the upload lifecycle of records: it stores uploads before a
// record is saved and removes files before a record is deleted. A Behavior is
// immutable after New and safe for concurrent use.
type Behavior struct {
	store          BlobStore
	refs           ReferenceCounter
	fields         []FieldConfig
	suffix         string
	mimeField      string
	encodingField  string
	recognizers    []string
	defaults       recognizer.Result
	tokens         map[string]pathtemplate.TokenFunc
	unlinkOnDelete bool
	hooks          *Hooks
	logger         *slog.Logger
	now            func() time.Time

	resolver *pathtemplate.Resolver
	chain    *recognizer.Chain
	mover    *Mover
}

// Option represents a functional option for configuring the behavior
type Option func(*Behavior)

// WithBlobStore sets the storage the uploads are moved into
func WithBlobStore(store BlobStore) Option {
	return func(b *Behavior) {
		b.store = store
	}
}

// WithReferenceCounter sets the reference counter consulted before deleting files
func WithReferenceCounter(refs ReferenceCounter) Option {
	return func(b *Behavior) {
		b.refs = refs
	}
}

// WithField adds a managed field, replacing an earlier one of the same name
func WithField(field FieldConfig) Option {
	return func(b *Behavior) {
		for i := range b.fields {
			if b.fields[i].Name == field.Name {
				b.fields[i] = field
				return
			}
		}
		b.fields = append(b.fields, field)
	}
}

// WithSuffix sets the suffix of the virtual upload attribute (default "_file")
func WithSuffix(suffix string) Option {
	return func(b *Behavior) {
		b.suffix = suffix
	}
}

// WithRecognizers enables content recognition with the named recognizers
func WithRecognizers(names ...string) Option {
	return func(b *Behavior) {
		b.recognizers = names
	}
}

// WithMimeField sets the field receiving the detected MIME type
func WithMimeField(field string) Option {
	return func(b *Behavior) {
		b.mimeField = field
	}
}

// WithEncodingField sets the field receiving the detected encoding
func WithEncodingField(field string) Option {
	return func(b *Behavior) {
		b.encodingField = field
	}
}

// WithDefaults sets the MIME type and encoding stored when nothing was detected
func WithDefaults(mimeType, encoding string) Option {
	return func(b *Behavior) {
		if mimeType != "" {
			b.defaults.MimeType = mimeType
		}
		if encoding != "" {
			b.defaults.Encoding = encoding
		}
	}
}

// WithToken adds a custom path template token
func WithToken(name string, fn pathtemplate.TokenFunc) Option {
	return func(b *Behavior) {
		if b.tokens == nil {
			b.tokens = make(map[string]pathtemplate.TokenFunc)
		}
		b.tokens[name] = fn
	}
}

// WithUnlinkOnDelete toggles file removal on record deletion for all fields
func WithUnlinkOnDelete(enabled bool) Option {
	return func(b *Behavior) {
		b.unlinkOnDelete = enabled
	}
}

// WithHooks adds lifecycle hooks
func WithHooks(hooks *Hooks) Option {
	return func(b *Behavior) {
		b.hooks.Merge(hooks)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Behavior) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock sets the time source used for date tokens
func WithClock(now func() time.Time) Option {
	return func(b *Behavior) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a new behavior instance with the given options
func New(options ...Option) (*Behavior, error) {
	b := &Behavior{
		suffix:         DefaultSuffix,
		mimeField:      DefaultMimeField,
		encodingField:  DefaultEncodingField,
		defaults:       recognizer.Result{MimeType: DefaultMimeType, Encoding: DefaultEncoding},
		unlinkOnDelete: true,
		hooks:          &Hooks{},
		logger:         slog.Default(),
		now:            time.Now,
	}

	for _, option := range options {
		option(b)
	}

	if b.store == nil {
		return nil, &ConfigurationError{Err: ErrBlobStoreRequired}
	}
	for _, field := range b.fields {
		if err := field.Validate(); err != nil {
			return nil, err
		}
	}

	if len(b.recognizers) > 0 {
		chain, err := recognizer.NewChainFromNames(b.recognizers,
			recognizer.WithDefaults(b.defaults),
			recognizer.WithLogger(b.logger),
		)
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		b.chain = chain
	}

	b.resolver = pathtemplate.New(b.tokens)
	b.mover = NewMover(b.store, b.logger, b.hooks)

	return b, nil
}

// Fields returns the managed field configs in processing order.
func (b *Behavior) Fields() []FieldConfig {
	out := make([]FieldConfig, len(b.fields))
	copy(out, b.fields)
	return out
}

// Resolver returns the path template resolver.
func (b *Behavior) Resolver() *pathtemplate.Resolver {
	return b.resolver
}

// Chain returns the recognizer chain, nil when recognition is disabled.
func (b *Behavior) Chain() *recognizer.Chain {
	return b.chain
}

// VirtualField returns the name of the attribute carrying the upload for field.
func (b *Behavior) VirtualField(field string) string {
	return field + b.suffix
}

// BeforeSave stores the uploads of entity and writes the resulting references
// back into its fields. Uploads are taken from uploads, keyed by managed field
// name, or else from the entity's virtual upload attributes.
//
// Fields are processed in configuration order. The first failure aborts the
// save; files already stored for earlier fields are kept.
func (b *Behavior) BeforeSave(ctx context.Context, entity Entity, uploads map[string]UploadDescriptor, opts SaveOptions) error {
	for _, field := range b.fields {
		field = opts.apply(field)

		upload, ok := b.upload(entity, field.Name, uploads)
		if !ok {
			continue
		}

		if err := b.saveField(ctx, entity, field, upload, opts); err != nil {
			b.hooks.executeOnError(ctx, "save", err)
			return err
		}

		if u, ok := entity.(Unsetter); ok {
			u.Unset(b.VirtualField(field.Name))
		}
	}
	return nil
}

func (b *Behavior) upload(entity Entity, field string, uploads map[string]UploadDescriptor) (UploadDescriptor, bool) {
	if upload, ok := uploads[field]; ok {
		return upload, true
	}

	v, ok := entity.Get(b.VirtualField(field))
	if !ok {
		return UploadDescriptor{}, false
	}
	switch upload := v.(type) {
	case UploadDescriptor:
		return upload, true
	case *UploadDescriptor:
		if upload != nil {
			return *upload, true
		}
	}
	return UploadDescriptor{}, false
}

func (b *Behavior) saveField(ctx context.Context, entity Entity, field FieldConfig, upload UploadDescriptor, opts SaveOptions) error {
	switch upload.Error {
	case UploadErrNoFile:
		return nil
	case UploadErrOK:
	default:
		return &UploadError{Field: field.Name, Code: upload.Error}
	}

	key, err := b.resolver.Resolve(field.PathTemplate, pathtemplate.Context{
		EntityID:   entity.ID(),
		UserID:     opts.UserID,
		SourcePath: upload.TempPath,
		Extension:  pathtemplate.Extension(upload.OriginalName),
		Now:        b.now(),
	})
	if err != nil {
		return &PathResolutionError{Field: field.Name, Template: field.PathTemplate, Err: err}
	}

	previous := stringValue(entity, field.Name)
	location, err := b.mover.MoveIntoPlace(ctx, upload.TempPath, key, previous, field)
	if err != nil {
		return err
	}

	entity.Set(field.Name, field.Prefix+key)
	if field.OriginalNameField != "" {
		entity.Set(field.OriginalNameField, upload.OriginalName)
	}
	b.logger.Debug("upload moved into place", "id", entity.ID(), "field", field.Name, "location", location)

	if err := b.hooks.executeAfterFileStored(ctx, entity, field.Name, location); err != nil {
		return fmt.Errorf("after file stored hook: %w", err)
	}

	if b.chain == nil {
		return nil
	}

	result := b.chain.Run(ctx, storedFile{ctx: ctx, store: b.store, key: key})
	if name := firstNonEmpty(field.MimeField, b.mimeField); name != "" {
		entity.Set(name, result.MimeType)
	}
	if name := firstNonEmpty(field.EncodingField, b.encodingField); name != "" {
		entity.Set(name, result.Encoding)
	}

	if err := b.hooks.executeAfterFileRecognized(ctx, entity, field.Name, result); err != nil {
		return fmt.Errorf("after file recognized hook: %w", err)
	}
	return nil
}

// BeforeDelete removes the files of entity that no other record references.
// The first failure aborts the delete. Pass DeleteOptions.References to count
// inside the transaction that removes the record.
func (b *Behavior) BeforeDelete(ctx context.Context, entity Entity, opts DeleteOptions) error {
	if !b.unlinkOnDelete {
		return nil
	}

	refs := b.refs
	if opts.References != nil {
		refs = opts.References
	}

	for _, field := range b.fields {
		field = opts.apply(field)
		if err := b.mover.DeleteOnRecordRemoval(ctx, entity, field, refs); err != nil {
			b.hooks.executeOnError(ctx, "delete", err)
			return err
		}
	}
	return nil
}

// storedFile exposes a stored blob to the recognizer chain.
type storedFile struct {
	ctx   context.Context
	store BlobStore
	key   string
}

func (f storedFile) Name() string {
	return f.key
}

func (f storedFile) Open() (io.ReadCloser, error) {
	return f.store.Open(f.ctx, f.key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

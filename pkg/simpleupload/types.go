package simpleupload

import (
	"fmt"
	"sort"
)

// Upload error codes carried by UploadDescriptor.Error. They follow the
// numbering of multipart upload error codes used by common web stacks.
const (
	UploadErrOK        = 0
	UploadErrIniSize   = 1
	UploadErrFormSize  = 2
	UploadErrPartial   = 3
	UploadErrNoFile    = 4
	UploadErrNoTmpDir  = 6
	UploadErrCantWrite = 7
	UploadErrExtension = 8
)

// UploadDescriptor describes a temporary upload handed over by the collaborator.
type UploadDescriptor struct {
	OriginalName string `json:"original_name"`
	TempPath     string `json:"temp_path"`
	Error        int    `json:"error"`
}

// FieldConfig configures one managed field.
type FieldConfig struct {
	// Name of the entity field receiving the stored file reference
	Name string

	// PathTemplate resolved into the storage key (required)
	PathTemplate string

	// OriginalNameField optionally receives the uploaded file name
	OriginalNameField string

	// Prefix is prepended to the resolved path in the stored value
	Prefix string

	// Overwrite replaces an existing destination and deletes the stale file
	Overwrite bool

	// UnlinkOnDelete removes the file when the record is deleted
	UnlinkOnDelete bool

	// DefaultFile is a shared placeholder that is never deleted
	DefaultFile string

	// MimeField and EncodingField override the behavior-wide output fields
	MimeField     string
	EncodingField string
}

// NewFieldConfig returns a field config with overwrite and unlink-on-delete enabled.
func NewFieldConfig(name, pathTemplate string) FieldConfig {
	return FieldConfig{
		Name:           name,
		PathTemplate:   pathTemplate,
		Overwrite:      true,
		UnlinkOnDelete: true,
	}
}

// Validate checks the field config.
func (f FieldConfig) Validate() error {
	if f.Name == "" {
		return &ConfigurationError{Err: ErrFieldNameRequired}
	}
	if f.PathTemplate == "" {
		return &ConfigurationError{Field: f.Name, Err: ErrPathTemplateRequired}
	}
	return nil
}

// SaveOptions carries per-call settings for BeforeSave. Nil pointers keep the
// configured field values.
type SaveOptions struct {
	UserID      string
	Overwrite   *bool
	DefaultFile *string
}

func (o SaveOptions) apply(f FieldConfig) FieldConfig {
	if o.Overwrite != nil {
		f.Overwrite = *o.Overwrite
	}
	if o.DefaultFile != nil {
		f.DefaultFile = *o.DefaultFile
	}
	return f
}

// DeleteOptions carries per-call settings for BeforeDelete.
type DeleteOptions struct {
	DefaultFile *string

	// References replaces the configured reference counter for this call,
	// e.g. a repository bound to the transaction that deletes the record.
	References ReferenceCounter
}

func (o DeleteOptions) apply(f FieldConfig) FieldConfig {
	if o.DefaultFile != nil {
		f.DefaultFile = *o.DefaultFile
	}
	return f
}

// Record is a map-backed Entity for collaborators without their own model type.
type Record struct {
	id     string
	fields map[string]any
}

// NewRecord creates a record with a copy of fields.
func NewRecord(id string, fields map[string]any) *Record {
	r := &Record{id: id, fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

func (r *Record) ID() string {
	return r.id
}

func (r *Record) Get(field string) (any, bool) {
	v, ok := r.fields[field]
	return v, ok
}

func (r *Record) Set(field string, value any) {
	r.fields[field] = value
}

func (r *Record) Unset(field string) {
	delete(r.fields, field)
}

// String returns the field value formatted as a string, empty when unset.
func (r *Record) String(field string) string {
	return stringValue(r, field)
}

// Fields returns a copy of all field values.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// FieldNames returns the set field names in sorted order.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for k := range r.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep enough copy for storage layers to hold on to.
func (r *Record) Clone() *Record {
	return NewRecord(r.id, r.fields)
}

func stringValue(e Entity, field string) string {
	v, ok := e.Get(field)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s == nil {
			return ""
		}
		return *s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

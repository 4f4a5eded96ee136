package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tendant/simple-upload/internal/logging"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/recognizer"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Root:            "./data/uploads",
		DatabaseURL:     "memory",
		Suffix:          simpleupload.DefaultSuffix,
		MimeField:       simpleupload.DefaultMimeField,
		EncodingField:   simpleupload.DefaultEncodingField,
		DefaultMime:     simpleupload.DefaultMimeType,
		DefaultEncoding: simpleupload.DefaultEncoding,
		UnlinkOnDelete:  true,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Config represents the configuration of an upload behavior and its backends.
// Values are read from a YAML, JSON or TOML file and from UPLOAD_ prefixed
// environment variables.
type Config struct {
	// Root storage directory used when StorageURL is empty
	Root string `yaml:"root" json:"root" toml:"root" env:"UPLOAD_ROOT"`

	// StorageURL selects the blob store: "memory://", "file:///path" or
	// "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
	StorageURL string `yaml:"storage_url" json:"storage_url" toml:"storage_url" env:"UPLOAD_STORAGE_URL"`

	// DatabaseURL selects the record store: "memory" or "postgres://..."
	DatabaseURL string `yaml:"database_url" json:"database_url" toml:"database_url" env:"UPLOAD_DATABASE_URL"`

	Suffix          string   `yaml:"suffix" json:"suffix" toml:"suffix" env:"UPLOAD_SUFFIX"`
	Recognizers     []string `yaml:"recognizers" json:"recognizers" toml:"recognizers" env:"UPLOAD_RECOGNIZERS" env-separator:","`
	MimeField       string   `yaml:"mime_field" json:"mime_field" toml:"mime_field" env:"UPLOAD_MIME_FIELD"`
	EncodingField   string   `yaml:"encoding_field" json:"encoding_field" toml:"encoding_field" env:"UPLOAD_ENCODING_FIELD"`
	DefaultMime     string   `yaml:"default_mime" json:"default_mime" toml:"default_mime" env:"UPLOAD_DEFAULT_MIME"`
	DefaultEncoding string   `yaml:"default_encoding" json:"default_encoding" toml:"default_encoding" env:"UPLOAD_DEFAULT_ENCODING"`
	UnlinkOnDelete  bool     `yaml:"unlink_on_delete" json:"unlink_on_delete" toml:"unlink_on_delete" env:"UPLOAD_UNLINK_ON_DELETE"`

	// Fields are processed in order
	Fields []FieldConfig `yaml:"fields" json:"fields" toml:"fields"`

	// Tokens are literal custom path template tokens
	Tokens map[string]string `yaml:"tokens" json:"tokens" toml:"tokens" env:"UPLOAD_TOKENS"`

	LogLevel  string `yaml:"log_level" json:"log_level" toml:"log_level" env:"UPLOAD_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" json:"log_format" toml:"log_format" env:"UPLOAD_LOG_FORMAT"`
}

// FieldConfig configures one managed field. Nil booleans default to true.
type FieldConfig struct {
	Name              string `yaml:"name" json:"name" toml:"name"`
	Path              string `yaml:"path" json:"path" toml:"path"`
	Prefix            string `yaml:"prefix" json:"prefix" toml:"prefix"`
	OriginalNameField string `yaml:"original_name_field" json:"original_name_field" toml:"original_name_field"`
	Overwrite         *bool  `yaml:"overwrite" json:"overwrite" toml:"overwrite"`
	UnlinkOnDelete    *bool  `yaml:"unlink_on_delete" json:"unlink_on_delete" toml:"unlink_on_delete"`
	DefaultFile       string `yaml:"default_file" json:"default_file" toml:"default_file"`
	MimeField         string `yaml:"mime_field" json:"mime_field" toml:"mime_field"`
	EncodingField     string `yaml:"encoding_field" json:"encoding_field" toml:"encoding_field"`
}

// ToField converts the file representation into the library type.
func (f FieldConfig) ToField() simpleupload.FieldConfig {
	field := simpleupload.NewFieldConfig(f.Name, f.Path)
	field.Prefix = f.Prefix
	field.OriginalNameField = f.OriginalNameField
	field.DefaultFile = f.DefaultFile
	field.MimeField = f.MimeField
	field.EncodingField = f.EncodingField
	if f.Overwrite != nil {
		field.Overwrite = *f.Overwrite
	}
	if f.UnlinkOnDelete != nil {
		field.UnlinkOnDelete = *f.UnlinkOnDelete
	}
	return field
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StorageURL == "" && c.Root == "" {
		return errors.New("root or storage_url is required")
	}
	if _, err := parseStorageURL(c.storageURL()); err != nil {
		return err
	}
	if _, err := databaseType(c.DatabaseURL); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("fields[%d]: name is required", i)
		}
		if f.Path == "" {
			return fmt.Errorf("field %s: path is required", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %s: configured twice", f.Name)
		}
		seen[f.Name] = true
	}

	for _, name := range c.Recognizers {
		if _, err := recognizer.Lookup(name); err != nil {
			return err
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("log_format must be 'text' or 'json', got: %s", c.LogFormat)
	}

	return nil
}

func (c *Config) storageURL() string {
	if c.StorageURL != "" {
		return c.StorageURL
	}
	return "file://" + c.Root
}

// storageTarget is a parsed storage URL.
type storageTarget struct {
	kind   string // "memory", "fs", "s3"
	path   string
	bucket string
	query  url.Values
}

func parseStorageURL(raw string) (storageTarget, error) {
	switch {
	case raw == "memory" || raw == "memory://":
		return storageTarget{kind: "memory"}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return storageTarget{}, fmt.Errorf("filesystem path cannot be empty in storage_url")
		}
		return storageTarget{kind: "fs", path: path}, nil
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return storageTarget{}, fmt.Errorf("invalid storage_url: %w", err)
		}
		if u.Host == "" {
			return storageTarget{}, fmt.Errorf("S3 bucket name cannot be empty in storage_url")
		}
		return storageTarget{
			kind:   "s3",
			bucket: u.Host,
			path:   strings.TrimPrefix(u.Path, "/"),
			query:  u.Query(),
		}, nil
	}
	return storageTarget{}, fmt.Errorf("unsupported storage_url format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

func databaseType(raw string) (string, error) {
	switch {
	case raw == "" || raw == "memory":
		return "memory", nil
	case strings.HasPrefix(raw, "postgresql://"), strings.HasPrefix(raw, "postgres://"):
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database_url format: %s (use 'memory' or 'postgresql://...')", raw)
}

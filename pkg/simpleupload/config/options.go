package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithFile reads a YAML, JSON or TOML config file, chosen by extension.
// UPLOAD_ environment variables still take precedence over file values.
func WithFile(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("config file path cannot be empty")
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv applies UPLOAD_ environment variable overrides.
//
//	UPLOAD_ROOT             - root storage directory
//	UPLOAD_STORAGE_URL      - "memory://", "file:///path" or "s3://bucket?region=..."
//	UPLOAD_DATABASE_URL     - "memory" or "postgresql://..."
//	UPLOAD_RECOGNIZERS      - comma separated recognizer names, e.g. "generic,csv"
//	UPLOAD_TOKENS           - custom tokens as "name:value,other:value"
//	UPLOAD_LOG_LEVEL        - debug, info, warn, error
//	UPLOAD_LOG_FORMAT       - text or json
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithRoot sets the root storage directory
func WithRoot(root string) Option {
	return func(c *Config) error {
		if root == "" {
			return fmt.Errorf("root cannot be empty")
		}
		c.Root = root
		return nil
	}
}

// WithStorageURL selects the blob store
func WithStorageURL(storageURL string) Option {
	return func(c *Config) error {
		if _, err := parseStorageURL(storageURL); err != nil {
			return err
		}
		c.StorageURL = storageURL
		return nil
	}
}

// WithDatabaseURL selects the record store
func WithDatabaseURL(databaseURL string) Option {
	return func(c *Config) error {
		if _, err := databaseType(databaseURL); err != nil {
			return err
		}
		c.DatabaseURL = databaseURL
		return nil
	}
}

// WithField adds a managed field, replacing a configured field of the same name
func WithField(field FieldConfig) Option {
	return func(c *Config) error {
		if field.Name == "" {
			return fmt.Errorf("field name cannot be empty")
		}
		for i := range c.Fields {
			if c.Fields[i].Name == field.Name {
				c.Fields[i] = field
				return nil
			}
		}
		c.Fields = append(c.Fields, field)
		return nil
	}
}

// WithRecognizers sets the recognizer chain by name
func WithRecognizers(names ...string) Option {
	return func(c *Config) error {
		c.Recognizers = names
		return nil
	}
}

// WithToken adds a literal custom path template token
func WithToken(name, value string) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("token name cannot be empty")
		}
		if c.Tokens == nil {
			c.Tokens = make(map[string]string)
		}
		c.Tokens[name] = value
		return nil
	}
}

// WithUnlinkOnDelete toggles file removal when records are deleted
func WithUnlinkOnDelete(enabled bool) Option {
	return func(c *Config) error {
		c.UnlinkOnDelete = enabled
		return nil
	}
}

// WithLogging sets the log level and format
func WithLogging(level, format string) Option {
	return func(c *Config) error {
		if level != "" {
			c.LogLevel = level
		}
		if format != "" {
			c.LogFormat = format
		}
		return nil
	}
}

// Package pathtemplate expands upload path templates such as
// "uploads/:y/:m/:fast-hash:.ext" into concrete storage-relative paths.
package pathtemplate

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTemplateRequired indicates an empty path template
	ErrTemplateRequired = errors.New("path template is required")

	// ErrExtensionRequired indicates the uploaded file has no extension
	ErrExtensionRequired = errors.New("file extension is required")

	// ErrUserRequired indicates :uid was used without a logged in user
	ErrUserRequired = errors.New("logged in user id is required for :uid")

	// ErrSourceRequired indicates a checksum token was used without a source file
	ErrSourceRequired = errors.New("source file is required for checksum tokens")
)

// Context carries the values a template is resolved against.
type Context struct {
	EntityID   string
	UserID     string
	SourcePath string
	Extension  string
	Now        time.Time
}

// TokenFunc computes the replacement for a token. It is only called when the
// token actually occurs in the template.
type TokenFunc func(ctx Context) (string, error)

// Literal returns a TokenFunc that always yields value.
func Literal(value string) TokenFunc {
	return func(Context) (string, error) {
		return value, nil
	}
}

// Resolver resolves templates against a fixed token vocabulary.
// A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	tokens map[string]TokenFunc
	// longest first so ":date" wins over ":d" and ":extcase" over ":ext"
	order []string
}

// New creates a resolver with the builtin tokens plus custom. Custom tokens
// override builtins of the same name. Names without a leading ':' get one.
func New(custom map[string]TokenFunc) *Resolver {
	tokens := builtinTokens()
	for name, fn := range custom {
		if name == "" || fn == nil {
			continue
		}
		if !strings.HasPrefix(name, ":") {
			name = ":" + name
		}
		tokens[name] = fn
	}

	order := make([]string, 0, len(tokens))
	for name := range tokens {
		order = append(order, name)
	}
	sort.Slice(order, func(i, j int) bool {
		if len(order[i]) != len(order[j]) {
			return len(order[i]) > len(order[j])
		}
		return order[i] < order[j]
	})

	return &Resolver{tokens: tokens, order: order}
}

// Tokens returns the token names known to the resolver, longest first.
func (r *Resolver) Tokens() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve expands template. Leading and trailing path separators are trimmed
// first. No extension is appended; use :ext or :.ext in the template.
func (r *Resolver) Resolve(template string, ctx Context) (string, error) {
	if template == "" {
		return "", ErrTemplateRequired
	}
	if ctx.Extension == "" {
		return "", ErrExtensionRequired
	}
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}

	template = strings.Trim(template, "/"+string(os.PathSeparator))
	if template == "" {
		return "", ErrTemplateRequired
	}

	values := make(map[string]string)
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] != ':' {
			b.WriteByte(template[i])
			i++
			continue
		}

		name := r.match(template[i:])
		if name == "" {
			b.WriteByte(template[i])
			i++
			continue
		}

		value, ok := values[name]
		if !ok {
			v, err := r.tokens[name](ctx)
			if err != nil {
				return "", fmt.Errorf("token %s: %w", name, err)
			}
			values[name] = v
			value = v
		}
		b.WriteString(value)
		i += len(name)
	}

	return b.String(), nil
}

func (r *Resolver) match(s string) string {
	for _, name := range r.order {
		if strings.HasPrefix(s, name) {
			return name
		}
	}
	return ""
}

func builtinTokens() map[string]TokenFunc {
	return map[string]TokenFunc{
		":uid": func(ctx Context) (string, error) {
			if ctx.UserID == "" {
				return "", ErrUserRequired
			}
			return ctx.UserID, nil
		},
		":id": func(ctx Context) (string, error) {
			return ctx.EntityID, nil
		},
		":md5": func(ctx Context) (string, error) {
			return fileChecksum(ctx.SourcePath, md5.New())
		},
		":sha256": func(ctx Context) (string, error) {
			return fileChecksum(ctx.SourcePath, sha256.New())
		},
		":fast-hash": func(Context) (string, error) {
			sum := md5.Sum([]byte(uuid.NewString() + strconv.FormatInt(time.Now().UnixNano(), 36)))
			return hex.EncodeToString(sum[:]), nil
		},
		":fast-uniq": func(Context) (string, error) {
			nonce := make([]byte, 16)
			if _, err := rand.Read(nonce); err != nil {
				return "", fmt.Errorf("failed to read random bytes: %w", err)
			}
			id := uuid.New()
			h := sha256.New()
			h.Write(id[:])
			h.Write(nonce)
			return hex.EncodeToString(h.Sum(nil)), nil
		},
		":y": func(ctx Context) (string, error) {
			return ctx.Now.Format("2006"), nil
		},
		":m": func(ctx Context) (string, error) {
			return ctx.Now.Format("01"), nil
		},
		":d": func(ctx Context) (string, error) {
			return ctx.Now.Format("02"), nil
		},
		":date": func(ctx Context) (string, error) {
			return ctx.Now.Format("2006-01-02"), nil
		},
		":time": func(ctx Context) (string, error) {
			return ctx.Now.Format("150405"), nil
		},
		":extcase": func(ctx Context) (string, error) {
			return ctx.Extension, nil
		},
		":ext": func(ctx Context) (string, error) {
			return strings.ToLower(ctx.Extension), nil
		},
		":.extcase": func(ctx Context) (string, error) {
			return "." + ctx.Extension, nil
		},
		":.ext": func(ctx Context) (string, error) {
			return "." + strings.ToLower(ctx.Extension), nil
		},
	}
}

func fileChecksum(path string, h hash.Hash) (string, error) {
	if path == "" {
		return "", ErrSourceRequired
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Extension returns the extension of name without the leading dot, case preserved.
func Extension(name string) string {
	idx := strings.LastIndexAny(name, `./\`)
	if idx < 0 || name[idx] != '.' {
		return ""
	}
	return name[idx+1:]
}

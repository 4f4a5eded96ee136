package recognizer

import (
	"context"
	"errors"
	"log/slog"
)

// ErrUnknownRecognizer indicates a recognizer name missing from the registry
var ErrUnknownRecognizer = errors.New("unknown recognizer")

// Chain runs recognizers in order, letting later ones refine earlier results.
// A Chain holds no per-file state and may be shared.
type Chain struct {
	recognizers []Recognizer
	defaults    Result
	logger      *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithDefaults sets the values reported when nothing was detected.
func WithDefaults(defaults Result) ChainOption {
	return func(c *Chain) {
		c.defaults = defaults
	}
}

// WithLogger sets the logger used for recognizer failures.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates a chain over recognizers.
func NewChain(recognizers []Recognizer, opts ...ChainOption) *Chain {
	c := &Chain{
		recognizers: append([]Recognizer(nil), recognizers...),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewChainFromNames builds a chain from registry names.
func NewChainFromNames(names []string, opts ...ChainOption) (*Chain, error) {
	recognizers := make([]Recognizer, 0, len(names))
	for _, name := range names {
		r, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, r)
	}
	return NewChain(recognizers, opts...), nil
}

// Names returns the names of the chained recognizers in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.recognizers))
	for i, r := range c.recognizers {
		names[i] = r.Name()
	}
	return names
}

// Run detects the type and encoding of f, falling back to the chain defaults
// for anything left undetected.
func (c *Chain) Run(ctx context.Context, f File) Result {
	result := c.Detect(ctx, f)
	if result.MimeType == "" {
		result.MimeType = c.defaults.MimeType
	}
	if result.Encoding == "" {
		result.Encoding = c.defaults.Encoding
	}
	return result
}

// Detect is Run without the default fallback.
func (c *Chain) Detect(ctx context.Context, f File) Result {
	var current Result
	for _, r := range c.recognizers {
		if current.MimeType != "" && !r.CanImprove(current.MimeType) {
			continue
		}

		found, err := r.Recognize(ctx, f, current)
		if err != nil {
			c.logger.Debug("recognizer found nothing",
				"recognizer", r.Name(), "file", f.Name(), "err", err)
			continue
		}

		if found.MimeType != "" {
			current.MimeType = found.MimeType
		}
		if found.Encoding != "" {
			current.Encoding = found.Encoding
		}
	}
	return current
}

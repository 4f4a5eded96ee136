package recognizer

import (
	"fmt"
	"sort"
	"strings"
)

// Factory constructs a recognizer.
type Factory func() Recognizer

var registry = map[string]Factory{
	"generic": NewGenericRecognizer,
	"finfo":   NewGenericRecognizer,
	"csv":     NewCSVRecognizer,
}

// Lookup returns a new recognizer registered under name (case-insensitive).
func Lookup(name string) (Recognizer, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecognizer, name)
	}
	return factory(), nil
}

// Names lists the registered recognizer names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package recognizer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

const (
	// sniffLen is the number of bytes http.DetectContentType considers
	sniffLen = 512

	// encodingSampleLen is the number of bytes inspected for the encoding
	encodingSampleLen = 8192

	// MimeTypeEmpty is reported for zero-length files
	MimeTypeEmpty = "application/x-empty"
)

// GenericRecognizer sniffs magic bytes for a MIME type and classifies the
// byte content into an encoding name (binary, us-ascii, utf-8, ...).
// It never refines an earlier result and is normally first in a chain.
type GenericRecognizer struct{}

// NewGenericRecognizer creates a GenericRecognizer.
func NewGenericRecognizer() Recognizer {
	return GenericRecognizer{}
}

func (GenericRecognizer) Name() string {
	return "generic"
}

func (GenericRecognizer) CanImprove(string) bool {
	return false
}

func (GenericRecognizer) Recognize(ctx context.Context, f File, current Result) (Result, error) {
	rc, err := f.Open()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	buf := make([]byte, encodingSampleLen)
	n, err := io.ReadFull(rc, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Result{}, fmt.Errorf("failed to read %s: %w", f.Name(), err)
	}
	buf = buf[:n]
	if n == 0 {
		return Result{MimeType: MimeTypeEmpty, Encoding: "binary"}, nil
	}
	truncated := n == encodingSampleLen

	head := buf
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	detected := http.DetectContentType(head)
	mimeType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		mimeType = detected
	}

	return Result{
		MimeType: mimeType,
		Encoding: detectEncoding(buf, mimeType, truncated),
	}, nil
}

// detectEncoding names the encoding of sample using the vocabulary of
// libmagic's --mime-encoding output.
func detectEncoding(sample []byte, mimeType string, truncated bool) string {
	if !isTextual(mimeType) {
		return "binary"
	}

	ascii := true
	for _, c := range sample {
		if c == 0 {
			return "binary"
		}
		if c >= utf8.RuneSelf {
			ascii = false
		}
	}
	if ascii {
		return "us-ascii"
	}

	if truncated {
		sample = trimPartialRune(sample)
	}
	if utf8.Valid(sample) {
		return "utf-8"
	}

	// falls back to windows-1252 when nothing more specific is found
	_, name, _ := charset.DetermineEncoding(sample, mimeType)
	return strings.ToLower(name)
}

func isTextual(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/javascript":
		return true
	}
	return false
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end of a sample.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		break
	}
	return b
}

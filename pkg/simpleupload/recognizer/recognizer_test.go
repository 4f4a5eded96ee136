package recognizer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload/recognizer"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01}

func writeFile(t *testing.T, name string, data []byte) recognizer.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return recognizer.LocalFile(path)
}

func lines(line string, n int) []byte {
	return []byte(strings.Repeat(line+"\n", n))
}

func TestCSVRecognizer(t *testing.T) {
	ctx := context.Background()
	r := recognizer.NewCSVRecognizer()

	tests := []struct {
		name      string
		data      []byte
		expectErr bool
		separator string
	}{
		{name: "six comma rows", data: lines("a,b,c", 6), separator: ","},
		{name: "exactly five rows", data: lines("a,b,c", 5), separator: ","},
		{name: "four rows is too few", data: lines("a,b,c", 4), expectErr: true},
		{name: "semicolon", data: lines("x;y", 5), separator: ";"},
		{name: "pipe", data: lines("x|y|z|w", 5), separator: "|"},
		{name: "colon", data: lines("k:v", 5), separator: ":"},
		{name: "tab", data: lines("k\tv", 5), separator: "\t"},
		{name: "highest count wins", data: lines("a;b;c,d", 5), separator: ";"},
		{name: "tie goes to earlier separator", data: lines("a,b;c", 5), separator: ","},
		{
			name:      "row three differs",
			data:      []byte("a,b,c\n1,2,3\n1,2\n4,5,6\n7,8,9\n1,1,1\n"),
			expectErr: true,
		},
		{name: "single column is not csv", data: lines("plain text line", 8), expectErr: true},
		{name: "empty file", data: []byte{}, expectErr: true},
		{
			name:      "quoted fields",
			data:      []byte("name,note\n\"Smith, J\",ok\n\"Doe, A\",\"multi\nline\"\nx,y\nz,w\n"),
			separator: ",",
		},
		{
			name:      "blank row rejects",
			data:      []byte("a,b,c\n\na,b,c\n\na,b,c\n\na,b,c\n\na,b,c\n"),
			expectErr: true,
		},
		{name: "trailing blank row rejects", data: []byte(strings.Repeat("a,b,c\n", 5) + "\n"), expectErr: true},
		{
			name:      "long header accepted",
			data:      []byte(strings.Repeat("h", 4200) + ",x\n" + string(lines("a,b", 5))),
			separator: ",",
		},
		{
			name:      "data line too long",
			data:      []byte("a,b\n" + strings.Repeat("a", recognizer.CSVMaxLineLength) + ",b\n" + string(lines("a,b", 4))),
			expectErr: true,
		},
		{name: "no trailing newline", data: []byte(strings.Repeat("a,b,c\n", 4) + "a,b,c"), separator: ","},
		{name: "crlf line endings", data: []byte(strings.Repeat("a,b,c\r\n", 5)), separator: ","},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := writeFile(t, "data.txt", tt.data)
			result, err := r.Recognize(ctx, f, recognizer.Result{MimeType: "text/plain"})
			if tt.expectErr {
				assert.Error(t, err)
				assert.Empty(t, result.MimeType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, recognizer.MimeTypeCSV, result.MimeType)
			assert.Equal(t, "Separator: "+tt.separator, result.Encoding)
		})
	}
}

func TestCSVRecognizer_CanImprove(t *testing.T) {
	r := recognizer.NewCSVRecognizer()
	assert.True(t, r.CanImprove("text/plain"))
	assert.False(t, r.CanImprove("text/csv"))
	assert.False(t, r.CanImprove("image/jpeg"))
	assert.False(t, r.CanImprove("application/octet-stream"))
}

func TestGenericRecognizer(t *testing.T) {
	ctx := context.Background()
	r := recognizer.NewGenericRecognizer()
	assert.False(t, r.CanImprove("text/plain"))

	t.Run("plain ascii", func(t *testing.T) {
		result, err := r.Recognize(ctx, writeFile(t, "a.txt", []byte("hello world\n")), recognizer.Result{})
		require.NoError(t, err)
		assert.Equal(t, "text/plain", result.MimeType)
		assert.Equal(t, "us-ascii", result.Encoding)
	})

	t.Run("utf-8 text", func(t *testing.T) {
		result, err := r.Recognize(ctx, writeFile(t, "u.txt", []byte("héllo wörld\n")), recognizer.Result{})
		require.NoError(t, err)
		assert.Equal(t, "text/plain", result.MimeType)
		assert.Equal(t, "utf-8", result.Encoding)
	})

	t.Run("latin-1 text", func(t *testing.T) {
		result, err := r.Recognize(ctx, writeFile(t, "l.txt", []byte("caf\xe9 cr\xe8me\n")), recognizer.Result{})
		require.NoError(t, err)
		assert.Equal(t, "text/plain", result.MimeType)
		assert.Equal(t, "windows-1252", result.Encoding)
	})

	t.Run("jpeg", func(t *testing.T) {
		result, err := r.Recognize(ctx, writeFile(t, "p.jpg", jpegHeader), recognizer.Result{})
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", result.MimeType)
		assert.Equal(t, "binary", result.Encoding)
	})

	t.Run("empty file", func(t *testing.T) {
		result, err := r.Recognize(ctx, writeFile(t, "e.txt", nil), recognizer.Result{})
		require.NoError(t, err)
		assert.Equal(t, "application/x-empty", result.MimeType)
		assert.Equal(t, "binary", result.Encoding)
	})

	t.Run("shift-jis text", func(t *testing.T) {
		result, err := r.Recognize(ctx, writeFile(t, "s.html", []byte("<html><head><meta charset=\"shift_jis\"></head><body>\x82\xa0</body></html>")), recognizer.Result{})
		require.NoError(t, err)
		assert.Equal(t, "text/html", result.MimeType)
		assert.Equal(t, "shift_jis", result.Encoding)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := r.Recognize(ctx, recognizer.LocalFile(filepath.Join(t.TempDir(), "gone")), recognizer.Result{})
		assert.ErrorIs(t, err, recognizer.ErrFileNotFound)
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	chain, err := recognizer.NewChainFromNames([]string{"generic", "csv"},
		recognizer.WithDefaults(recognizer.Result{MimeType: "application/octet-stream", Encoding: "binary"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"generic", "csv"}, chain.Names())

	t.Run("csv refines plain text", func(t *testing.T) {
		result := chain.Run(ctx, writeFile(t, "d.csv", lines("a,b,c", 6)))
		assert.Equal(t, "text/csv", result.MimeType)
		assert.Contains(t, result.Encoding, ",")
	})

	t.Run("short csv stays plain text", func(t *testing.T) {
		result := chain.Run(ctx, writeFile(t, "d.csv", lines("a,b,c", 4)))
		assert.Equal(t, "text/plain", result.MimeType)
		assert.Equal(t, "us-ascii", result.Encoding)
	})

	t.Run("jpeg is left alone", func(t *testing.T) {
		result := chain.Run(ctx, writeFile(t, "p.jpg", jpegHeader))
		assert.Equal(t, "image/jpeg", result.MimeType)
		assert.Equal(t, "binary", result.Encoding)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		result := chain.Run(ctx, recognizer.LocalFile(filepath.Join(t.TempDir(), "gone")))
		assert.Equal(t, "application/octet-stream", result.MimeType)
		assert.Equal(t, "binary", result.Encoding)

		raw := chain.Detect(ctx, recognizer.LocalFile(filepath.Join(t.TempDir(), "gone")))
		assert.Empty(t, raw.MimeType)
	})
}

type stubRecognizer struct {
	name    string
	improve string
	result  recognizer.Result
	err     error
	calls   *int
	hints   *[]recognizer.Result
}

func (s stubRecognizer) Name() string { return s.name }

func (s stubRecognizer) CanImprove(mimeType string) bool { return mimeType == s.improve }

func (s stubRecognizer) Recognize(ctx context.Context, f recognizer.File, current recognizer.Result) (recognizer.Result, error) {
	*s.calls++
	if s.hints != nil {
		*s.hints = append(*s.hints, current)
	}
	return s.result, s.err
}

func TestChain_SkipsAndNeverClobbers(t *testing.T) {
	ctx := context.Background()
	f := writeFile(t, "x.bin", []byte("x"))

	var firstCalls, secondCalls, thirdCalls int
	var hints []recognizer.Result
	chain := recognizer.NewChain([]recognizer.Recognizer{
		stubRecognizer{name: "first", calls: &firstCalls, result: recognizer.Result{MimeType: "text/plain", Encoding: "utf-8"}},
		stubRecognizer{name: "blind", calls: &secondCalls, improve: "image/png"},
		stubRecognizer{name: "empty", calls: &thirdCalls, improve: "text/plain", hints: &hints},
	})

	result := chain.Run(ctx, f)
	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 0, secondCalls, "recognizer that cannot improve must not run")
	assert.Equal(t, 1, thirdCalls)
	require.Len(t, hints, 1)
	assert.Equal(t, "text/plain", hints[0].MimeType)
	assert.Equal(t, recognizer.Result{MimeType: "text/plain", Encoding: "utf-8"}, result)

	// no state carried into the next run
	result = chain.Run(ctx, f)
	assert.Equal(t, 2, firstCalls)
	assert.Equal(t, recognizer.Result{MimeType: "text/plain", Encoding: "utf-8"}, result)
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"generic", "Finfo", "CSV", " csv "} {
		r, err := recognizer.Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, r)
	}

	_, err := recognizer.Lookup("exif")
	assert.ErrorIs(t, err, recognizer.ErrUnknownRecognizer)

	_, err = recognizer.NewChainFromNames([]string{"generic", "nope"})
	assert.ErrorIs(t, err, recognizer.ErrUnknownRecognizer)

	assert.Equal(t, []string{"csv", "finfo", "generic"}, recognizer.Names())
}

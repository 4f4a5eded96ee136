package pathtemplate_test

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload/pathtemplate"
)

func writeSource(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.tmp")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestResolve_Tokens(t *testing.T) {
	src := writeSource(t, "hello world")
	md5sum := md5.Sum([]byte("hello world"))
	shasum := sha256.Sum256([]byte("hello world"))

	ctx := pathtemplate.Context{
		EntityID:   "42",
		UserID:     "7",
		SourcePath: src,
		Extension:  "JpG",
		Now:        time.Date(2024, time.March, 5, 9, 4, 2, 0, time.UTC),
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"id", "uploads/:id/file", "uploads/42/file"},
		{"uid", "users/:uid/avatar", "users/7/avatar"},
		{"date parts", ":y/:m/:d", "2024/03/05"},
		{"date wins over d", "logs/:date", "logs/2024-03-05"},
		{"time", "t-:time", "t-090402"},
		{"ext lower", "file.:ext", "file.jpg"},
		{"extcase", "file.:extcase", "file.JpG"},
		{"dot ext", "file:.ext", "file.jpg"},
		{"dot extcase", "file:.extcase", "file.JpG"},
		{"md5", ":md5", hex.EncodeToString(md5sum[:])},
		{"md5 not month", "x/:md5:.ext", "x/" + hex.EncodeToString(md5sum[:]) + ".jpg"},
		{"sha256", ":sha256", hex.EncodeToString(shasum[:])},
		{"trims separators", "/uploads/:id/", "uploads/42"},
		{"unknown colon kept", "a:b/:id", "a:b/42"},
		{"no tokens", "static/name", "static/name"},
	}

	r := pathtemplate.New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve_DeterministicWithoutRandomTokens(t *testing.T) {
	src := writeSource(t, "content")
	ctx := pathtemplate.Context{
		EntityID:   "abc",
		UserID:     "u1",
		SourcePath: src,
		Extension:  "PNG",
		Now:        time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC),
	}
	r := pathtemplate.New(nil)
	template := "img/:uid/:y/:m/:d/:date-:time/:id-:md5-:sha256:.ext"

	first, err := r.Resolve(template, ctx)
	require.NoError(t, err)
	second, err := r.Resolve(template, ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_RandomTokens(t *testing.T) {
	r := pathtemplate.New(nil)
	ctx := pathtemplate.Context{Extension: "txt"}

	a, err := r.Resolve(":fast-hash", ctx)
	require.NoError(t, err)
	b, err := r.Resolve(":fast-hash", ctx)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	c, err := r.Resolve(":fast-uniq", ctx)
	require.NoError(t, err)
	d, err := r.Resolve(":fast-uniq", ctx)
	require.NoError(t, err)
	assert.Len(t, c, 64)
	assert.NotEqual(t, c, d)

	// one value per resolve
	e, err := r.Resolve(":fast-hash/:fast-hash", ctx)
	require.NoError(t, err)
	assert.Equal(t, e[:32], e[33:])
}

func TestResolve_Errors(t *testing.T) {
	r := pathtemplate.New(nil)

	_, err := r.Resolve("", pathtemplate.Context{Extension: "txt"})
	assert.ErrorIs(t, err, pathtemplate.ErrTemplateRequired)

	_, err = r.Resolve("///", pathtemplate.Context{Extension: "txt"})
	assert.ErrorIs(t, err, pathtemplate.ErrTemplateRequired)

	_, err = r.Resolve("a/:id", pathtemplate.Context{})
	assert.ErrorIs(t, err, pathtemplate.ErrExtensionRequired)

	_, err = r.Resolve("a/:uid", pathtemplate.Context{Extension: "txt"})
	assert.ErrorIs(t, err, pathtemplate.ErrUserRequired)

	_, err = r.Resolve("a/:md5", pathtemplate.Context{Extension: "txt"})
	assert.ErrorIs(t, err, pathtemplate.ErrSourceRequired)

	_, err = r.Resolve("a/:sha256", pathtemplate.Context{Extension: "txt", SourcePath: "/does/not/exist"})
	assert.Error(t, err)
}

func TestResolve_UidWithoutUserOnlyFailsWhenPresent(t *testing.T) {
	r := pathtemplate.New(nil)
	got, err := r.Resolve("a/:id", pathtemplate.Context{EntityID: "1", Extension: "txt"})
	require.NoError(t, err)
	assert.Equal(t, "a/1", got)
}

func TestResolve_CustomTokens(t *testing.T) {
	r := pathtemplate.New(map[string]pathtemplate.TokenFunc{
		"tenant": pathtemplate.Literal("acme"),
		":id": func(ctx pathtemplate.Context) (string, error) {
			return "id-" + ctx.EntityID, nil
		},
		":ext2": pathtemplate.Literal("custom"),
	})
	ctx := pathtemplate.Context{EntityID: "9", Extension: "Txt"}

	got, err := r.Resolve(":tenant/:id/:ext2/:ext", ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme/id-9/custom/txt", got)
	assert.Contains(t, r.Tokens(), ":tenant")
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":       "JPG",
		"archive.tar.gz":  "gz",
		"noext":           "",
		"dir.d/noext":     "",
		".bashrc":         "bashrc",
		"trailing.":       "",
		`C:\tmp\file.csv`: "csv",
	}
	for name, expected := range tests {
		assert.Equal(t, expected, pathtemplate.Extension(name), name)
	}
}

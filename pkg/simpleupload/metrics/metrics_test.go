package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/repo/memory"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
)

func tempUpload(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.tmp")
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestCollector_Lifecycle(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	collector := New(WithRegistry(reg))

	repo := memory.New()
	behavior, err := simpleupload.New(
		simpleupload.WithBlobStore(memorystorage.New()),
		simpleupload.WithReferenceCounter(repo),
		simpleupload.WithField(simpleupload.NewFieldConfig("doc", "docs/:fast-hash:.ext")),
		simpleupload.WithRecognizers("generic"),
		simpleupload.WithHooks(collector.Hooks()),
	)
	require.NoError(t, err)

	record := simpleupload.NewRecord("1", nil)
	for i := 0; i < 2; i++ {
		require.NoError(t, behavior.BeforeSave(ctx, record, map[string]simpleupload.UploadDescriptor{
			"doc": {OriginalName: "a.txt", TempPath: tempUpload(t, "hello")},
		}, simpleupload.SaveOptions{}))
	}
	require.NoError(t, repo.SaveRecord(ctx, record))

	shared := simpleupload.NewRecord("2", record.Fields())
	require.NoError(t, repo.SaveRecord(ctx, shared))
	require.NoError(t, behavior.BeforeDelete(ctx, shared, simpleupload.DeleteOptions{}))
	require.NoError(t, repo.DeleteRecord(ctx, "2"))
	require.NoError(t, behavior.BeforeDelete(ctx, record, simpleupload.DeleteOptions{}))

	err = behavior.BeforeSave(ctx, simpleupload.NewRecord("3", nil), map[string]simpleupload.UploadDescriptor{
		"doc": {OriginalName: "a.txt", Error: simpleupload.UploadErrPartial},
	}, simpleupload.SaveOptions{})
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.filesStored.WithLabelValues("doc")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.filesRecognized.WithLabelValues("doc", "text/plain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.staleDeleted.WithLabelValues("doc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sharedKept.WithLabelValues("doc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.filesDeleted.WithLabelValues("doc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.errors.WithLabelValues("save")))
}

func TestCollector_Namespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := New(WithRegistry(reg), WithNamespace("app"), WithConstLabels(prometheus.Labels{"env": "test"}))
	collector.errors.WithLabelValues("delete").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "app_errors_total", families[0].GetName())
}

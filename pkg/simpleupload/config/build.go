package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/metrics"
	"github.com/tendant/simple-upload/pkg/simpleupload/pathtemplate"
	"github.com/tendant/simple-upload/pkg/simpleupload/repo/memory"
	repopg "github.com/tendant/simple-upload/pkg/simpleupload/repo/postgres"
	fsstorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/fs"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
	s3storage "github.com/tendant/simple-upload/pkg/simpleupload/storage/s3"
)

// Runtime bundles a configured behavior with the backends it was built on.
type Runtime struct {
	Behavior *simpleupload.Behavior
	Store    simpleupload.BlobStore
	Records  simpleupload.Repository

	closers []func()
}

// Close releases database connections.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// BuildOptions tune Build beyond what the config file can express.
type BuildOptions struct {
	Logger *slog.Logger

	// Registry receives upload metrics when set
	Registry prometheus.Registerer

	// Extra options appended after the configured ones
	Behavior []simpleupload.Option
}

// Build creates the blob store, the record store and the behavior described by c.
func (c *Config) Build(ctx context.Context, opts BuildOptions) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{}

	store, err := c.buildStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}
	rt.Store = store

	records, err := c.buildRepository(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Records = records

	options := []simpleupload.Option{
		simpleupload.WithBlobStore(store),
		simpleupload.WithReferenceCounter(records),
		simpleupload.WithLogger(logger),
		simpleupload.WithSuffix(c.Suffix),
		simpleupload.WithMimeField(c.MimeField),
		simpleupload.WithEncodingField(c.EncodingField),
		simpleupload.WithDefaults(c.DefaultMime, c.DefaultEncoding),
		simpleupload.WithUnlinkOnDelete(c.UnlinkOnDelete),
		simpleupload.WithHooks(simpleupload.LoggingHook(logger)),
	}
	if len(c.Recognizers) > 0 {
		options = append(options, simpleupload.WithRecognizers(c.Recognizers...))
	}
	for _, f := range c.Fields {
		options = append(options, simpleupload.WithField(f.ToField()))
	}
	for name, value := range c.Tokens {
		options = append(options, simpleupload.WithToken(name, pathtemplate.Literal(value)))
	}
	if opts.Registry != nil {
		collector := metrics.New(metrics.WithRegistry(opts.Registry))
		options = append(options, simpleupload.WithHooks(collector.Hooks()))
	}
	options = append(options, opts.Behavior...)

	behavior, err := simpleupload.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Behavior = behavior

	return rt, nil
}

func (c *Config) buildStorage(ctx context.Context) (simpleupload.BlobStore, error) {
	target, err := parseStorageURL(c.storageURL())
	if err != nil {
		return nil, err
	}

	switch target.kind {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: target.path})

	case "s3":
		q := target.query
		s3Config := s3storage.Config{
			Bucket:                 target.bucket,
			KeyPrefix:              target.path,
			Region:                 q.Get("region"),
			Endpoint:               q.Get("endpoint"),
			UsePathStyle:           queryBool(q.Get("path_style")),
			EnableSSE:              q.Get("sse") != "",
			SSEAlgorithm:           q.Get("sse"),
			SSEKMSKeyID:            q.Get("sse_kms_key_id"),
			CreateBucketIfNotExist: queryBool(q.Get("create_bucket")),
		}
		return s3storage.New(ctx, s3Config)
	}

	return nil, fmt.Errorf("unsupported storage backend type: %s", target.kind)
}

func (c *Config) buildRepository(ctx context.Context, rt *Runtime) (simpleupload.Repository, error) {
	dbType, err := databaseType(c.DatabaseURL)
	if err != nil {
		return nil, err
	}

	switch dbType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)

		repo := repopg.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	}

	return nil, fmt.Errorf("unsupported database type: %s", dbType)
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

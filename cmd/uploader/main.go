package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-upload/internal/logging"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by all subcommands.
type globalFlags struct {
	configFile string
	verbose    bool
	metrics    bool
}

func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "uploader",
		Short: "Store, recognize and clean up uploaded files",
		Long: `Uploader drives the simple-upload library from the command line.

Configuration is read from an optional config file (--config) and from
UPLOAD_ prefixed environment variables, including a .env file in the
working directory. Storage defaults to ./data/uploads and records are kept
in memory unless UPLOAD_DATABASE_URL points at Postgres.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.metrics, "metrics", false, "print upload counters when done")

	rootCmd.AddCommand(NewStoreCommand(flags))
	rootCmd.AddCommand(NewDeleteCommand(flags))
	rootCmd.AddCommand(NewListCommand(flags))
	rootCmd.AddCommand(NewRecognizeCommand(flags))
	rootCmd.AddCommand(NewResolveCommand())

	return rootCmd
}

// session is a loaded runtime plus what is needed to report on it.
type session struct {
	*config.Runtime
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
}

func openSession(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*session, error) {
	var opts []config.Option
	if flags.configFile != "" {
		opts = append(opts, config.WithFile(flags.configFile))
	}
	opts = append(opts, config.WithEnv())
	if flags.verbose {
		opts = append(opts, config.WithLogging("debug", ""))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	s := &session{cfg: cfg, logger: logger}
	buildOpts := config.BuildOptions{Logger: logger}
	if flags.metrics {
		s.registry = prometheus.NewRegistry()
		buildOpts.Registry = s.registry
	}

	rt, err := cfg.Build(ctx, buildOpts)
	if err != nil {
		return nil, err
	}
	s.Runtime = rt
	return s, nil
}

// finish prints collected metrics and releases the runtime.
func (s *session) finish(w io.Writer) {
	defer s.Close()
	if s.registry == nil {
		return
	}

	families, err := s.registry.Gather()
	if err != nil {
		s.logger.Warn("failed to gather metrics", "err", err)
		return
	}

	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var labels []string
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g",
				family.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

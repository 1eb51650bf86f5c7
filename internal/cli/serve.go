package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/rulesync/pkg/catalog"
	"github.com/macropower/rulesync/pkg/config"
	"github.com/macropower/rulesync/pkg/engine"
	"github.com/macropower/rulesync/pkg/httpserver"
	"github.com/macropower/rulesync/pkg/loader"
	"github.com/macropower/rulesync/pkg/mcp"
	"github.com/macropower/rulesync/pkg/metrics"
	"github.com/macropower/rulesync/pkg/rulesync"
	"github.com/macropower/rulesync/pkg/telemetry"
	"github.com/macropower/rulesync/pkg/version"
	"github.com/macropower/rulesync/pkg/watch"
)

const serveExamples = `  # Watch ./Rules:
  rulesync serve

  # Watch another directory and expose metrics:
  rulesync serve --dir /etc/rules --metrics-address :9090

  # Serve the catalog to MCP clients over stdio:
  rulesync serve --mcp

  # Exit if the directory cannot be watched:
  rulesync serve --require-watch`

type ServeArgs struct {
	*RootArgs

	Dir             string
	MCPAddress      string
	MetricsAddress  string
	TracingExporter string
	TracingEndpoint string
	Extensions      []string
	MCP             bool
	RequireWatch    bool
	TracingInsecure bool
}

func NewServeArgs(rootArgs *RootArgs) *ServeArgs {
	return &ServeArgs{
		RootArgs: rootArgs,
	}
}

func (sa *ServeArgs) AddFlags(cmd *cobra.Command) {
	addDirFlags(cmd, &sa.Dir, &sa.Extensions)

	cmd.Flags().BoolVar(&sa.RequireWatch, "require-watch", false,
		"Exit if the rule directory cannot be watched, instead of serving an empty catalog")
	cmd.Flags().BoolVar(&sa.MCP, "mcp", false, "Serve the catalog to MCP clients")
	cmd.Flags().StringVar(&sa.MCPAddress, "mcp-address", "",
		"Serve MCP over streamable HTTP at this address, instead of stdio")
	cmd.Flags().StringVar(&sa.MetricsAddress, "metrics-address", "", "Serve Prometheus metrics at this address")
	cmd.Flags().StringVar(&sa.TracingExporter, "tracing-exporter", telemetry.ExporterNone,
		"Trace exporter, one of: [none otlp]")
	cmd.Flags().StringVar(&sa.TracingEndpoint, "tracing-endpoint", "", "OTLP/gRPC trace receiver address")
	cmd.Flags().BoolVar(&sa.TracingInsecure, "tracing-insecure", false, "Disable TLS for the trace receiver")

	err := cmd.RegisterFlagCompletionFunc("tracing-exporter",
		cobra.FixedCompletions([]string{telemetry.ExporterNone, telemetry.ExporterOTLP}, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}
}

func addDirFlags(cmd *cobra.Command, dir *string, exts *[]string) {
	cmd.Flags().StringVarP(dir, "dir", "d", config.DefaultDirectory, "Rule directory")
	cmd.Flags().StringSliceVar(exts, "ext", nil, "Rule file extensions (default [.yml,.yaml])")

	err := cmd.MarkFlagDirname("dir")
	if err != nil {
		panic(fmt.Errorf("mark dir flag: %w", err))
	}
}

// Config returns the configuration file overlaid with any flags that were set
// on the command line or through the environment.
func (sa *ServeArgs) Config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := sa.LoadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Directory = sa.Dir
	}
	if flags.Changed("ext") {
		cfg.Extensions = sa.Extensions
	}
	if flags.Changed("require-watch") {
		cfg.RequireWatch = sa.RequireWatch
	}
	if flags.Changed("mcp") {
		cfg.MCP.Enabled = sa.MCP
	}
	if flags.Changed("mcp-address") {
		cfg.MCP.Address = sa.MCPAddress
	}
	if flags.Changed("metrics-address") {
		cfg.Metrics.Address = sa.MetricsAddress
	}
	if flags.Changed("tracing-exporter") {
		cfg.Tracing.Exporter = sa.TracingExporter
	}
	if flags.Changed("tracing-endpoint") {
		cfg.Tracing.Endpoint = sa.TracingEndpoint
	}
	if flags.Changed("tracing-insecure") {
		cfg.Tracing.Insecure = sa.TracingInsecure
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by config.
	}

	return cfg, nil
}

func NewServeCmd(sa *ServeArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Watch the rule directory and keep the catalog in sync",
		Example: serveExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := sa.Config(cmd)
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}
	sa.AddFlags(cmd)

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cmdName,
		ServiceVersion: version.GetVersion(),
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	defer func() {
		err := shutdown(context.WithoutCancel(ctx))
		if err != nil {
			slog.ErrorContext(ctx, "shutdown tracing", slog.Any("err", err))
		}
	}()

	eng, err := engine.New()
	if err != nil {
		return fmt.Errorf("create rule engine: %w", err)
	}

	var (
		cat = catalog.New()
		m   = metrics.New()
		l   = loader.New(cfg.Directory, eng, loader.WithExtensions(cfg.Extensions...))
	)

	initial, maxInterval := cfg.RestartIntervals()
	syncer := rulesync.New(cat, l,
		rulesync.WithMetrics(m),
		rulesync.WithRestartPolicy(rulesync.RestartPolicy{
			InitialInterval: initial,
			MaxInterval:     maxInterval,
			MaxAttempts:     *cfg.Restart.MaxAttempts,
		}),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := syncer.Run(ctx)
		if errors.Is(err, watch.ErrDirectoryUnavailable) && !cfg.RequireWatch {
			slog.ErrorContext(ctx, "rule directory unavailable, serving an empty catalog",
				slog.String("dir", cfg.Directory),
				slog.Any("err", err),
			)
			<-ctx.Done()

			return nil
		}

		return err //nolint:wrapcheck // Already wrapped by rulesync.
	})

	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())

		g.Go(func() error {
			slog.InfoContext(ctx, "serving metrics", slog.String("address", cfg.Metrics.Address))

			return httpserver.Serve(ctx, cfg.Metrics.Address, mux) //nolint:wrapcheck // Already wrapped.
		})
	}

	if cfg.MCP.Enabled {
		server := mcp.NewServer(cfg.MCP.Address, cat)

		g.Go(func() error {
			return server.Serve(ctx) //nolint:wrapcheck // Already wrapped.
		})
	}

	slog.InfoContext(ctx, "starting rulesync",
		slog.String("dir", cfg.Directory),
		slog.Any("build", version.LogValue()),
	)

	err = g.Wait()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

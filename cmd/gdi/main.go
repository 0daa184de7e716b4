package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/gdi/internal/pipeline"
	"github.com/ajitpratap0/gdi/internal/quality"
	"github.com/ajitpratap0/gdi/internal/scheduler"
	"github.com/ajitpratap0/gdi/internal/transform"
	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/connector/registry"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
	"github.com/ajitpratap0/gdi/pkg/observability"
	"github.com/ajitpratap0/gdi/pkg/warehouse/postgres"

	// Register the built-in sources
	_ "github.com/ajitpratap0/gdi/pkg/connector/sources"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app holds what every configured command needs.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

// withConfig loads configuration, logging and tracing before fn and flushes them after.
func (a *app) withConfig(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg

		obs := cfg.Observability
		if err := logger.Init(logger.Config{
			Level:       obs.LogLevel,
			Development: obs.Development,
			Encoding:    obs.LogEncoding,
		}); err != nil {
			return errors.Wrap(err, errors.KindConfig, "failed to initialize logger")
		}
		a.log = logger.Get().With(zap.String("component", "gdi-cli"), zap.String("command", cmd.Name()))
		defer func() { _ = logger.Sync() }()

		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    obs.ServiceName,
			ServiceVersion: version,
			Enabled:        obs.EnableTracing,
		})
		if err != nil {
			return errors.Wrap(err, errors.KindConfig, "failed to initialize tracing")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				a.log.Warn("failed to flush traces", zap.Error(err))
			}
		}()

		return fn(cmd.Context(), cmd, args)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gdi",
		Short: "gdi - economic and financial indicator ingestion",
		Long: `gdi pulls macro indicators from the World Bank and market closing prices,
normalizes them and loads them into a Postgres star schema, then runs quality
checks and warehouse transformations.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML configuration file (optional)")

	root.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newTransformCmd(a),
		newPipelineCmd(a),
		newMigrateCmd(a),
		newScheduleCmd(a),
		newSourcesCmd(),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion",
		Long: `Fetch every enabled source and load the records into the warehouse in one transaction.

Example:
  gdi run --config gdi.yaml
  gdi run --dry-run`,
		Args: cobra.NoArgs,
		RunE: a.withConfig(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if dryRun {
				a.cfg.Warehouse.Driver = config.DriverMemory
			}
			result, err := pipeline.Ingest(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Load into an in-memory warehouse instead of Postgres")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run data quality checks against the warehouse",
		Args:  cobra.NoArgs,
		RunE: a.withConfig(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			report, err := quality.Run(ctx, a.cfg, a.log)
			if report != nil {
				if perr := printJSON(cmd, report); perr != nil {
					return perr
				}
			}
			return err
		}),
	}
}

func newTransformCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Run the warehouse transformation command",
		Args:  cobra.NoArgs,
		RunE: a.withConfig(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			return transform.Run(ctx, a.cfg, a.log)
		}),
	}
}

func newPipelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Run ingestion, quality checks and transformations once, in order",
		Args:  cobra.NoArgs,
		RunE: a.withConfig(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			return scheduler.New(a.cfg.Schedule, scheduler.DefaultSteps(a.cfg, a.log), a.log).RunOnce(ctx)
		}),
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Manage the warehouse schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: a.withConfig(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			store, err := postgres.Open(ctx, a.cfg.Warehouse, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			switch action {
			case "down":
				err = store.MigrateDown(ctx)
			case "up":
				err = store.Migrate(ctx)
			}
			if err != nil {
				return err
			}

			v, err := store.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		}),
	}
}

func newScheduleCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron schedule",
		Long: `Run ingestion, quality checks and transformations on schedule.cron until interrupted,
serving Prometheus metrics and a health endpoint on --metrics-addr.`,
		Args: cobra.NoArgs,
		RunE: a.withConfig(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			addr := a.cfg.Observability.MetricsAddr
			if metricsAddr != "" {
				addr = metricsAddr
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return scheduler.New(a.cfg.Schedule, scheduler.DefaultSteps(a.cfg, a.log), a.log).Start(ctx)
			})
			if addr != "" {
				g.Go(func() error {
					return serveMetrics(ctx, addr, a.log)
				})
			}
			return g.Wait()
		}),
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for /metrics and /healthz (overrides observability.metrics_addr)")
	return cmd
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List available sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available sources:")
			for _, info := range registry.ListSources() {
				fmt.Fprintf(out, "  - %-10s %-8s %s\n", info.Name, info.Domain, info.Description)
			}
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: a.withConfig(func(_ context.Context, cmd *cobra.Command, _ []string) error {
			if out != "" {
				if err := config.Save(out, a.cfg.Redacted()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", out)
				return nil
			}
			data, err := config.Marshal(a.cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the configuration to this file instead of stdout")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gdi v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

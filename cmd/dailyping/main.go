package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pingsantohq/dailyping/internal/config"
	"github.com/pingsantohq/dailyping/internal/diag"
	"github.com/pingsantohq/dailyping/internal/logging"
	"github.com/pingsantohq/dailyping/internal/runtime"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dailyping: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dailyping",
		Short:         "Probe a host every second and post a daily reachability report",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("config file (default $DAILYPING_CONFIG or %s)", config.DefaultConfigPath))

	root.AddCommand(
		newRunCmd(&configPath, stdout, stderr),
		newDiagCmd(&configPath, stdout),
		newInitCmd(&configPath, stdout),
	)
	return root
}

func newRunCmd(configPath *string, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start monitoring until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *configPath, stdout, stderr)
		},
	}
}

func run(ctx context.Context, configPath string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	instanceID := uuid.NewString()
	logger = logger.With("instance_id", instanceID)

	rt, err := runtime.New(ctx, cfg,
		runtime.WithLogger(logger),
		runtime.WithConsole(stdout),
		runtime.WithInstanceID(instanceID),
	)
	if err != nil {
		return err
	}
	rt.PrintBanner()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	if err := rt.Start(ctx, signals)(); err != nil {
		return err
	}
	logger.Info("dailyping stopped")
	return nil
}

func newDiagCmd(configPath *string, stdout io.Writer) *cobra.Command {
	var opts diag.Options
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Print detected addresses, one probe of target and gateway, and the effective config as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = *configPath
			return diag.Run(cmd.Context(), opts, diag.Dependencies{Out: stdout})
		},
	}
	cmd.Flags().StringVar(&opts.MetricsURL, "metrics-url", "", "Scrape a running instance, e.g. http://127.0.0.1:9320/metrics")
	cmd.Flags().DurationVar(&opts.MetricsTimeout, "metrics-timeout", 0, "HTTP timeout when scraping metrics")
	cmd.Flags().BoolVar(&opts.SkipProbes, "skip-probes", false, "Do not send probes")
	return cmd
}

func newInitCmd(configPath *string, stdout io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(*configPath)
			if err := config.WriteExample(path, force); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s; set discord_webhook_url before running\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

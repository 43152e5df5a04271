package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustsec-audit-action/pkg/config"
	"github.com/rustsec-audit-action/pkg/driver"
	"github.com/rustsec-audit-action/pkg/metrics"
	"github.com/rustsec-audit-action/pkg/notify"
)

var (
	version = "dev"
	commit  = "none"
)

var logLevel = new(slog.LevelVar)

func main() {
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(logHandler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := driver.ExitOK
	err := newRootCommand(&exitCode).ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("Audit failed", "error", err)
		os.Exit(driver.ExitError)
	}
	os.Exit(exitCode)
}

func newRootCommand(exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rustsec-audit",
		Short: "Audit Cargo.lock with cargo audit and track advisories as GitHub issues",
		Long: `Runs cargo audit against a Cargo.lock, reports the advisories it finds and,
when enabled, keeps one GitHub issue per advisory up to date. Issues are
never closed automatically.

Exit status is 0 without actionable findings, 1 with vulnerabilities (or
warnings when --deny-warnings is set) and 2 when the audit itself failed.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, exitCode)
		},
	}

	flags := cmd.PersistentFlags()
	flags.Bool("debug", os.Getenv("DEBUG") != "", "debug mode [$DEBUG]")
	flags.String("config", "", "Path to config file (default "+config.DefaultFile+" when present)")
	config.AddFlags(cmd.Flags())

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			logLevel.Set(slog.LevelDebug)
		}
		return nil
	}

	cmd.AddCommand(newRenderCommand())
	return cmd
}

func run(cmd *cobra.Command, exitCode *int) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg, err = config.MergeFlags(cfg, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}
	if cfg.DryRun {
		slog.Info("Dry run: no issues will be created or updated")
	}

	deps := driver.Deps{
		Stdout: cmd.OutOrStdout(),
	}
	if cfg.Notify.SlackWebhook != "" {
		deps.Notifier = notify.NewSlackNotifier(cfg.Notify.SlackWebhook)
	}
	if cfg.Metrics.Textfile != "" || cfg.Metrics.Pushgateway != "" {
		deps.Metrics = metrics.New()
	}

	res, err := driver.Run(cmd.Context(), cfg, deps)
	if err != nil {
		return err
	}
	if res.Failed {
		slog.Error("Actionable advisories found", "findings", len(res.Findings), "deny_warnings", cfg.DenyWarnings)
	}
	*exitCode = res.ExitCode
	return nil
}

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render REPORT.json",
		Short: "Render a saved cargo audit JSON report",
		Long:  `Parses the output of "cargo audit --json" (use - for stdin) and prints it without running the scanner or touching GitHub.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}

			format, _ := cmd.Flags().GetString("format")
			ignored, _ := cmd.Flags().GetStringSlice("ignore")
			ignore := make(map[string]bool, len(ignored))
			for _, id := range ignored {
				ignore[id] = true
			}
			return driver.Render(cmd.OutOrStdout(), data, format, ignore)
		},
	}
	cmd.Flags().String("format", "table", "Output format: table | markdown | json | sarif | openvex")
	cmd.Flags().StringSlice("ignore", nil, "Advisory IDs or aliases to ignore")
	return cmd
}

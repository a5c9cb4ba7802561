package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schaermu/claudesync/internal/config"
	"github.com/schaermu/claudesync/internal/git"
	claudesync "github.com/schaermu/claudesync/internal/sync"
	"github.com/schaermu/claudesync/internal/watch"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile     string
	rootDir     string
	targetsFile string
	logLevel    string
	logFormat   string
	dryRun      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claudesync",
	Short: "Synchronize a canonical .claude bundle with project directories",
	Long: `claudesync keeps a canonical .claude directory (constitution, settings,
agents, commands and scripts) in step with the .claude directories of a list
of projects.

Push copies the canonical bundle to every target listed in targets.txt; pull
copies one target's bundle back into the canonical directory.`,
	SilenceUsage: true,
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy the canonical bundle to every target",
	Long: `Push reads the target list and, for each target in order, overwrites the
constitution and replaces the agents, commands and scripts directories with
the canonical copies. Files removed from the canonical directories are removed
from the targets as well.

The first failing target aborts the run; targets already synced stay synced.`,
	Args: cobra.NoArgs,
	RunE: runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull <target .claude directory>",
	Short: "Copy one target's bundle back into the canonical directory",
	Long: `Pull copies the constitution, settings, agents, commands and scripts from a
target's .claude directory into the canonical directory, replacing what is
there. Items missing from the target are skipped with a warning.`,
	Example: "  claudesync pull ~/code/projects/app/.claude",
	Args:    pullArgs,
	RunE:    runPull,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report targets that differ from the canonical bundle",
	Long: `Status compares every target with the canonical bundle without changing
anything and exits non-zero when at least one target has drifted.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Push to all targets whenever the canonical bundle changes",
	Long: `Watch performs a push, then keeps watching the canonical directory and pushes
again once changes have settled for the configured debounce interval.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "claudesync %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/claudesync/config.yaml, used if present)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "canonical .claude directory (default ./.claude); resets the targets file to its default")
	rootCmd.PersistentFlags().StringVar(&targetsFile, "targets", "", "targets file (default is targets.txt next to the canonical directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	// Add commands
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func pullArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("target .claude directory path required\n\nUsage:\n  %s\n\nExample:\n%s",
			cmd.UseLine(), cmd.Example)
	}
	return cobra.ExactArgs(1)(cmd, args)
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := claudesync.NewEngine(cfg, nil, logger, dryRun)
	result, err := engine.Push(ctx)
	if err != nil {
		logger.Error("push failed", "error", err)
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Synced to %d target(s)\n", len(result.Targets))
	return nil
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := claudesync.NewEngine(cfg, git.NewShellClient(), logger, dryRun)
	result, err := engine.Pull(ctx, args[0])
	if err != nil {
		logger.Error("pull failed", "error", err)
		return err
	}

	printPullSummary(cmd, result)
	return nil
}

func printPullSummary(cmd *cobra.Command, result *claudesync.PullResult) {
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(out, "\n✓ Sync complete: %s -> %s\n", result.Source, result.Dest)
	if len(result.Skipped) > 0 {
		labels := make([]string, 0, len(result.Skipped))
		for _, item := range result.Skipped {
			labels = append(labels, item.Label())
		}
		_, _ = fmt.Fprintf(out, "  skipped (not found in source): %s\n", strings.Join(labels, ", "))
	}

	if len(result.ChangedPaths) > 0 {
		_, _ = fmt.Fprintf(out, "\nUncommitted changes:\n")
		for _, p := range result.ChangedPaths {
			_, _ = fmt.Fprintf(out, "  %s\n", p)
		}
	}

	_, _ = fmt.Fprintf(out, "\nNext steps:\n")
	_, _ = fmt.Fprintf(out, "  1. Review changes in %s\n", result.Dest)
	_, _ = fmt.Fprintf(out, "  2. Test any modified agents/commands\n")
	_, _ = fmt.Fprintf(out, "  3. Commit changes if desired\n")
	_, _ = fmt.Fprintf(out, "  4. Run `claudesync push` to propagate to all targets\n")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := claudesync.NewEngine(cfg, nil, logger, false)
	statuses, err := engine.Status(ctx)
	if err != nil {
		logger.Error("status failed", "error", err)
		return err
	}

	out := cmd.OutOrStdout()
	drifted := 0
	for _, s := range statuses {
		if s.InSync() {
			_, _ = fmt.Fprintf(out, "✓ %s\n", s.Target)
			continue
		}
		drifted++
		_, _ = fmt.Fprintf(out, "✗ %s\n", s.Target)
		for _, p := range s.Missing {
			_, _ = fmt.Fprintf(out, "    missing  %s\n", p)
		}
		for _, p := range s.Changed {
			_, _ = fmt.Fprintf(out, "    changed  %s\n", p)
		}
		for _, p := range s.Extra {
			_, _ = fmt.Fprintf(out, "    extra    %s\n", p)
		}
	}

	if drifted > 0 {
		return fmt.Errorf("%d of %d target(s) out of sync", drifted, len(statuses))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := claudesync.NewEngine(cfg, nil, logger, dryRun)
	watcher := watch.New(cfg.Paths.CanonicalRoot, cfg.Sync.WatchDebounce, func(ctx context.Context) error {
		_, err := engine.Push(ctx)
		return err
	}, logger)

	return watcher.Run(ctx)
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadConfig builds the configuration from the config file (when one is
// given or present at the default location) and the path flags.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg := &config.Config{}

	configPath, found, err := configFilePath()
	if err != nil {
		return nil, err
	}
	if found {
		logger.Info("loading configuration", "path", configPath)
		cfg, err = config.Parse(configPath)
		if err != nil {
			return nil, err
		}
	}

	if rootDir != "" {
		abs, err := filepath.Abs(rootDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve --root: %w", err)
		}
		cfg.Paths.CanonicalRoot = abs
		cfg.Paths.TargetsFile = ""
	}
	if cfg.Paths.CanonicalRoot == "" {
		abs, err := filepath.Abs(config.DefaultExpectedDirName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default canonical root: %w", err)
		}
		cfg.Paths.CanonicalRoot = abs
	}
	if targetsFile != "" {
		abs, err := filepath.Abs(targetsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve --targets: %w", err)
		}
		cfg.Paths.TargetsFile = abs
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("configuration loaded",
		"canonical_root", cfg.Paths.CanonicalRoot,
		"targets_file", cfg.Paths.TargetsFile,
		"expected_dir_name", cfg.Sync.ExpectedDirName,
		"push_settings", cfg.Sync.PushSettings)

	return cfg, nil
}

// configFilePath returns the config file to load. An explicit --config is
// always used; the default location only when the file exists.
func configFilePath() (string, bool, error) {
	if cfgFile != "" {
		return cfgFile, true, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, nil
	}
	path := filepath.Join(home, ".config", "claudesync", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to stat default config file: %w", err)
	}
	return path, true, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/raebler/hashtrack/internal/compact"
	"github.com/raebler/hashtrack/internal/config"
	"github.com/raebler/hashtrack/internal/manifest"
	"github.com/raebler/hashtrack/internal/scan"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	directory string
	output    string
	mode      string
	dryRun    bool
)

// runMode selects which pipeline to execute.
type runMode string

const (
	modeHashing runMode = "hashing"
	modeCleanup runMode = "cleanup"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hashtrack",
	Short: "Maintain an integrity manifest for files in a directory tree",
	Long: `hashtrack records the path, MD5 content hash and size of every regular file
under a directory into a line-delimited JSON manifest.

In hashing mode it walks the directory tree and appends a record for every
file that is new or whose size changed since the last run; files with an
unchanged size are skipped without re-hashing.

In cleanup mode it compacts the manifest: entries for deleted files are
dropped, repeated entries for the same path are resolved to the latest one,
and the manifest is rewritten atomically.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hashtrack %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Mode flags
	rootCmd.Flags().StringVarP(&directory, "directory", "d", "", "directory to scan (required in hashing mode)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "manifest file path (required)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "run mode: hashing or cleanup (required)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "cleanup only: show what would be done without rewriting")

	rootCmd.AddCommand(versionCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	m, err := parseMode(mode)
	if err != nil {
		return usageError(cmd, err)
	}

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	out := output
	if out == "" {
		out = cfg.Output
	}
	if out == "" {
		return usageError(cmd, fmt.Errorf("output manifest path is required (-o)"))
	}

	switch m {
	case modeHashing:
		if directory == "" {
			return usageError(cmd, fmt.Errorf("directory is required in hashing mode (-d)"))
		}
		if err := runHashing(logger, cfg, directory, out); err != nil {
			logger.Error("hashing run failed", "error", err)
			return err
		}
	case modeCleanup:
		if err := compact.New(logger, dryRun).Run(out); err != nil {
			logger.Error("cleanup run failed", "error", err)
			return err
		}
	}

	return nil
}

func runHashing(logger *slog.Logger, cfg *config.Config, dir, out string) error {
	existing, err := manifest.Load(out)
	if err != nil {
		return err
	}

	excludes, err := scan.NewExcludes(cfg.Excludes.Files, cfg.Excludes.Dirs)
	if err != nil {
		return err
	}

	writer, err := manifest.NewWriter(out)
	if err != nil {
		return err
	}
	defer func() {
		_ = writer.Close()
	}()

	logger.Info("starting hashing run", "directory", dir, "output", out, "known_files", len(existing.Records))

	scanner := scan.New(existing.Records, writer, excludes, logger)
	if err := scanner.Run(dir); err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close manifest: %w", err)
	}

	logger.Info("hashing run completed")
	return nil
}

// parseMode validates the -m flag, case-insensitively.
func parseMode(s string) (runMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(modeHashing):
		return modeHashing, nil
	case string(modeCleanup):
		return modeCleanup, nil
	case "":
		return "", fmt.Errorf("mode is required (-m hashing|cleanup)")
	default:
		return "", fmt.Errorf("unsupported mode %q (must be hashing or cleanup)", s)
	}
}

// usageError reports a CLI usage problem to standard output together with the
// command help, and returns the error so the process exits with code 1.
func usageError(cmd *cobra.Command, err error) error {
	fmt.Printf("Error: %v\n\n", err)
	_ = cmd.Help()
	return err
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

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}

	logger.Info("loading configuration", "path", cfgFile)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"output", cfg.Output,
		"exclude_files", len(cfg.Excludes.Files),
		"exclude_dirs", len(cfg.Excludes.Dirs))

	return cfg, nil
}

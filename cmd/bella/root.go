package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"bella/internal/config"
	"bella/internal/logging"
	"bella/internal/mind"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "bella",
	Short: "Bella - a Discord companion with a long memory",
	Long: `Bella chats in Discord servers, remembers the people she talks to and
follows her owner's orders.

Commands:
  run                 Connect to Discord and serve the liveness endpoint
  memory <action>     Inspect and maintain the memory document offline`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(memoryCmd)
}

// setup loads configuration and builds the root logger.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, closer := logging.New(logging.Options{
		Level:      cfg.SlogLevel(),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.FileMaxSizeMB,
		MaxBackups: cfg.Log.FileBackups,
		MaxAgeDays: cfg.Log.FileMaxAge,
	})
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

func storeOptions(cfg *config.Config) mind.Options {
	opts := mind.DefaultOptions()
	opts.Path = cfg.Memory.Path
	opts.BackupDir = cfg.Memory.BackupDir
	opts.BackupInterval = cfg.Memory.BackupInterval
	opts.BackupKeep = cfg.Memory.BackupKeep
	opts.Retention = cfg.Memory.Retention
	opts.CompactThreshold = cfg.Memory.CompactThreshold
	return opts
}

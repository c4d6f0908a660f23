package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqgen/internal/cli/config"
	"github.com/leapstack-labs/sqgen/internal/engine"
	"github.com/leapstack-labs/sqgen/internal/notify"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Engine  *engine.Engine
	Console *notify.Console
}

// contextOptions tunes NewCommandContext.
type contextOptions struct {
	// interactive overrides TTY detection for notification prompts.
	interactive *bool
}

// NewCommandContext creates a CommandContext with an engine whose
// notifications are printed to stderr.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, opts contextOptions) (*CommandContext, func(), error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := config.GetLogger(cmd.Context())

	console := notify.NewConsole(cmd.ErrOrStderr(), notify.ConsoleOptions{
		Interactive: opts.interactive,
		Logger:      logger,
	})

	eng, err := engine.New(engine.Config{
		Project:        cfg.Project(),
		RunningVersion: cmd.Root().Version,
		Notifier:       console,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", "error", err)
		}
	}

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Engine:  eng,
		Console: console,
	}, cleanup, nil
}

// getConfig returns the configuration loaded by the root command, loading it
// from the working directory when a command runs standalone.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func boolPtr(b bool) *bool {
	return &b
}

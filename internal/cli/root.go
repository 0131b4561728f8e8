// Package cli defines the avatarbuilder command-line interface.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/setanarut/avatarbuilder/internal/config"
	"github.com/setanarut/avatarbuilder/internal/logging"
	"github.com/setanarut/avatarbuilder/internal/telemetry"
)

// Options stores global flags shared between commands.
type Options struct {
	EnvFile  string
	LogLevel string
}

// Execute builds the root command and runs it with args.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	cmd := newRootCommand(&Options{}, logger)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	var shutdownTracing func(context.Context) error
	cmd := &cobra.Command{
		Use:           "avatarbuilder",
		Short:         "Render layered avatar animations from sprite atlases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.EnvFile)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = opts.LogLevel
			}
			logger = logging.NewLogger(os.Stderr, logging.ParseLevel(level))
			shutdown, err := telemetry.Setup(cmd.Context(), "avatarbuilder", cfg.OTelEndpoint)
			if err != nil {
				logger.Warn("tracing disabled", "error", err)
			}
			shutdownTracing = shutdown
			ctx := context.WithValue(cmd.Context(), loggerKey{}, logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)
			cmd.SetContext(ctx)
			logger.Debug("logger initialized", "level", level)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(context.WithoutCancel(cmd.Context()))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "Optional .env file with AVATARBUILDER_* settings")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newBuildCommand(),
		newUnpackCommand(),
	)
	return cmd
}

type loggerKey struct{}

type configKey struct{}

// LoggerFromContext returns the command logger or a default one.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}

func configFromContext(ctx context.Context) config.Config {
	cfg, _ := ctx.Value(configKey{}).(config.Config)
	return cfg
}

// Package cli defines wizardctl, a terminal front end for the profile wizard.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hperssn/wizard/internal/config"
	"github.com/hperssn/wizard/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	BaseURL     string
	StateDir    string
	HTTPTimeout time.Duration
	LogLevel    logging.Level

	fs afero.Fs
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	return execute(args, os.Stdout, logger, &Options{fs: afero.NewOsFs()})
}

func execute(args []string, out io.Writer, logger *slog.Logger, opts *Options) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootCmd := newRootCommand(opts, logger)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	return rootCmd.Execute()
}

func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wizardctl",
		Short:         "wizardctl walks through the profile wizard from a terminal",
		Long:          "wizardctl fills in the four step profile wizard against a wizard server. Field values are kept in a draft file until a step is saved.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if !flags.Changed("base-url") {
				opts.BaseURL = cfg.BaseURL
			}
			if !flags.Changed("state-dir") {
				opts.StateDir = cfg.StateDir
			}
			if !flags.Changed("timeout") {
				opts.HTTPTimeout = cfg.HTTPTimeout
			}
			levelName := cfg.LogLevel
			if flags.Changed("log-level") {
				levelName = cmd.Flag("log-level").Value.String()
			}
			if opts.fs == nil {
				opts.fs = afero.NewOsFs()
			}

			opts.LogLevel = logging.ParseLevel(levelName)
			logger = logging.NewLogger(os.Stderr, opts.LogLevel)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", opts.LogLevel, "base_url", opts.BaseURL)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "Wizard server URL (default from WIZARD_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", "", "Directory holding the session token and draft (default from WIZARD_STATE_DIR)")
	cmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "timeout", 0, "HTTP request timeout (default from WIZARD_HTTP_TIMEOUT)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newStatusCommand(opts),
		newSetCommand(opts),
		newAttachCommand(opts),
		newDetachCommand(opts),
		newSkillCommand(opts),
		newNextCommand(opts),
		newBackCommand(opts),
		newJumpCommand(opts),
		newProjectCommand(opts),
		newSubmitCommand(opts),
		newResetCommand(opts),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}

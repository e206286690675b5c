package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/fakenews/notifier/internal/shared/infrastructure/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app is filled in before any subcommand runs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var envFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:          "notifier",
		Short:        "FakeNews real-time notification client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(envFile); err != nil {
				return err
			}
			a.cfg = config.Load()
			if verbose {
				a.cfg.LogLevel = slog.LevelDebug
			}
			a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newRunCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newStatusCommand(a),
	)
	return cmd
}

// loadEnv reads path into the environment. A missing file is not an error;
// variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

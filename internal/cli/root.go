// Package cli implements the mudra command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mudra CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mudra",
		Short: "Mudra - touch gesture recognition",
		Long:  "Recognizes taps, swipes, pinches and trained strokes from pointer input and runs the actions bound to them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default ~/.mudra/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewPadCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file named by --config, or config.yaml in
// the default data directory.
func loadConfig(opts *RootOptions) (config.Config, error) {
	path := opts.Config
	if path == "" {
		path = filepath.Join(config.Default().DataDir, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// startApp opens the store under the data directory and starts an app with
// plugins, strokes and scripts loaded. A nil clock uses the wall clock.
func startApp(cfg config.Config, log *slog.Logger, clock *session.ManualClock) (*app.App, *store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "mudra.db"))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to initialize store", err)
	}

	appCfg := app.Config{
		Store:         st,
		PluginDir:     cfg.PluginDir,
		ScriptDir:     cfg.ScriptDir,
		PluginTimeout: cfg.PluginTimeout,
		Engine:        cfg.Engine,
		Journal:       cfg.Journal,
		Logger:        log,
	}
	if clock != nil {
		appCfg.Clock = clock
		appCfg.Scheduler = clock
	}
	a := app.New(appCfg)

	if err := a.DiscoverPlugins(); err != nil {
		log.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}
	if err := a.Start(); err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	if err := a.LoadStrokes(); err != nil {
		log.Warn("failed to load strokes", "error", err)
	}
	if err := a.LoadScripts(); err != nil {
		log.Warn("failed to load scripts", "dir", cfg.ScriptDir, "error", err)
	}
	return a, st, nil
}

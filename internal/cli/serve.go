package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	WebDir string
	Tray   bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gesture service",
		Long: `Run the HTTP API and the websocket session endpoint.

Clients send pointer events to /api/session and receive every recognized
gesture. Bound plugin actions run as gestures are recognized.

Examples:
  mudra serve
  mudra serve --addr :9000 --tray
  mudra serve --config ./mudra.toml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides the config file)")
	cmd.Flags().StringVar(&opts.WebDir, "web", "", "static web directory (default: search web/ and ~/.mudra/web)")
	cmd.Flags().BoolVar(&opts.Tray, "tray", false, "show the system tray menu")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.WebDir != "" {
		cfg.StaticDir = opts.WebDir
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = findWebDir(cfg.DataDir)
	}
	useTray := opts.Tray || cfg.Tray

	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	a, st, err := startApp(cfg, log, nil)
	if err != nil {
		return err
	}
	defer st.Close()
	defer a.Stop()

	if cfg.StaticDir != "" {
		log.Info("serving static files", "dir", cfg.StaticDir)
	}
	srv := server.New(server.Config{StaticDir: cfg.StaticDir, App: a, Logger: log})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	if useTray {
		t := tray.New(a)
		results, cancel := a.Subscribe()
		defer cancel()
		t.Follow(results)
		t.OnSettings(func() { openBrowser(settingsURL(cfg.Addr)) })
		t.OnQuit(stop)
		t.OnError(func(err error) { log.Warn("tray action failed", "error", err) })
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// the tray owns the main thread until it quits
		t.Run()
		stop()
	}

	<-ctx.Done()
	select {
	case err := <-serveErr:
		return WrapExitError(ExitCommandError, "server failed", err)
	default:
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "shutdown failed", err)
	}
	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}

// settingsURL turns a listen address into a browsable URL.
func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", url, err)
	}
}

// Package main is the entry point for the plugkit host. It discovers,
// resolves and initializes the plugins visible to the current configuration
// and prints what it found.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/plugkit/internal/app"
	"github.com/dshills/plugkit/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	configPath string
	logLevel   string
	profile    string
	serve      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.profile != "" {
		cfg.Profile = opts.profile
	}

	host, err := app.New(cfg, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	// Ensure cleanup on all exit paths
	defer func() {
		if err := host.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := host.Startup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	report(os.Stdout, host, cfg.Locale)

	if !opts.serve || cfg.MetricsAddr == "" {
		return 0
	}
	if err := serveMetrics(ctx, host, cfg.MetricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func report(w io.Writer, host *app.Context, locale string) {
	snap, err := host.Snapshot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if _, err := snap.WriteTo(w); err != nil {
		return
	}

	fmt.Fprintln(w, "plugins:")
	for _, h := range host.Plugins().Active() {
		fmt.Fprintf(w, "  %s %s", h.Name(), h.Version())
		if d := h.Description(locale); d != "" {
			fmt.Fprintf(w, ": %s", d)
		}
		fmt.Fprintln(w)
	}
	for _, f := range host.Plugins().Failures() {
		fmt.Fprintf(w, "  %s failed during %s: %v\n", f.Plugin, f.Phase, f.Err)
	}
}

// serveMetrics exposes the metrics registry until ctx is done.
func serveMetrics(ctx context.Context, host *app.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(host.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	host.Logger.Info("serving metrics on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	defaultConfig := filepath.Join(config.DefaultDir(), "plugkit.toml")
	flag.StringVar(&opts.configPath, "config", defaultConfig, "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", defaultConfig, "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.profile, "profile", "", "Enablement profile")
	flag.StringVar(&opts.profile, "p", "", "Enablement profile (shorthand)")
	flag.BoolVar(&opts.serve, "serve", false, "Keep running and serve metrics at metricsAddr")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "plugkit - plugin discovery and lifecycle host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: plugkit [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables prefixed with %s override the configuration file.\n", config.EnvPrefix)
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("plugkit %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
		os.Exit(1)
	}

	return opts
}

// Package main is the entry point for the Composer application shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/dshills/composer/internal/app"
	"github.com/dshills/composer/internal/command/history"
	"github.com/dshills/composer/internal/config"
	"github.com/dshills/composer/internal/config/watcher"
	"github.com/dshills/composer/internal/metrics"
	"github.com/dshills/composer/internal/plugin"
	"github.com/dshills/composer/internal/plugin/lua"
	"github.com/dshills/composer/internal/plugins/palette"
	"github.com/dshills/composer/internal/splash"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPaths are read when no -config is given. Missing files are
// skipped.
var defaultConfigPaths = []string{"composer.toml", "composer.yaml"}

type options struct {
	ConfigPath  string
	LogLevel    string
	Exec        string
	Args        []string
	MetricsAddr string
	Watch       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	paths := defaultConfigPaths
	if opts.ConfigPath != "" {
		paths = []string{opts.ConfigPath}
	}
	cfg, err := config.Load(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	settings := config.ResolveAppSettings(cfg)

	level := settings.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger := app.NewLogger(app.LoggerConfig{
		Level:  app.ParseLogLevel(level),
		Output: os.Stderr,
		Prefix: settings.Name,
	})

	catalog := plugin.NewCatalog()
	luaOutput := lua.WithOutput(func(id, line string) {
		logger.WithField("plugin", id).Info("%s", line)
	})
	if err := catalog.Register("lua", lua.Factory(luaOutput)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := catalog.Register(palette.ID, palette.Factory(palette.WithSink(printResults(os.Stdout)))); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	collector := metrics.New()
	appOpts := []app.Option{
		app.WithLogger(logger),
		app.WithCatalog(catalog),
		app.WithMetrics(collector),
	}

	if settings.HistoryPath != "" {
		h, err := history.OpenBolt(settings.HistoryPath, settings.HistorySize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open history: %v\n", err)
			return 1
		}
		defer h.Close()
		appOpts = append(appOpts, app.WithHistory(h))
	}

	// The banner needs the terminal; -exec output goes to stdout instead.
	if opts.Exec == "" && isatty.IsTerminal(os.Stdout.Fd()) {
		if s, err := splash.New(settings.Name); err == nil {
			appOpts = append(appOpts, app.WithPreloader(s))
		} else {
			logger.Warn("splash disabled: %v", err)
		}
	}

	application, err := app.New(cfg, appOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close: %v", err)
		}
	}()

	if err := application.Render(); err != nil {
		logger.Warn("preloader: %v", err)
	}

	if opts.Exec != "" {
		args, err := parseArgs(opts.Args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		if err := application.Execute(context.Background(), opts.Exec, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: collector.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	if opts.Watch {
		w, err := watchConfig(cfg.Sources(), logger)
		if err != nil {
			logger.Warn("config watch disabled: %v", err)
		} else {
			defer w.Close()
		}
	}

	logger.Info("ready: %d plugins, %d commands", len(application.Plugins()), application.Commands().Count())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	return 0
}

// watchConfig logs changes to the configuration files. The snapshot is
// frozen, so a change only takes effect after a restart.
func watchConfig(paths []string, logger *app.Logger) (*watcher.Watcher, error) {
	log := logger.WithComponent("config")
	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		log.Warn("watch: %v", err)
	}))
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := w.Watch(p); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	w.OnChange(func(ev watcher.Event) {
		log.Info("%s %s: restart to apply", ev.Path, ev.Op)
	})
	return w, nil
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides logging.level")
	flag.StringVar(&opts.Exec, "exec", "", "Execute a command and exit")
	flag.StringVar(&opts.Exec, "e", "", "Execute a command and exit (shorthand)")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&opts.Watch, "watch", false, "Log configuration file changes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Composer - plugin application shell\n\n")
		fmt.Fprintf(os.Stderr, "Usage: composer [options] [key=value...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  composer -c composer.toml                  Load plugins and wait\n")
		fmt.Fprintf(os.Stderr, "  composer -e palette.list query=save        List matching commands\n")
		fmt.Fprintf(os.Stderr, "  composer -e palette.recent limit=5         Show recent commands\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Composer %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	// Remaining arguments are key=value command arguments for -exec.
	opts.Args = flag.Args()
	return opts
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/storeconf/internal/application"
	"github.com/eugenenazirov/storeconf/internal/config"
	"github.com/eugenenazirov/storeconf/internal/logging"
	"github.com/eugenenazirov/storeconf/internal/settings"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("storeconf", "Resolves and validates cache and object store connection settings")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	settingsFiles := kingpinApp.Flag("settings", "Settings fragment to load (repeatable, later files win)").Short('s').Strings()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	serveCmd := kingpinApp.Command("serve", "Serve the resolved settings over HTTP").Default()
	validateCmd := kingpinApp.Command("validate", "Resolve the settings and print them with secrets redacted")
	checkCmd := kingpinApp.Command("check", "Connect to every configured backend")

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile:    *configFile,
		SettingsFiles: *settingsFiles,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		kingpinApp.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		kingpinApp.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case serveCmd.FullCommand():
		serve(cfg, logger)
	case validateCmd.FullCommand():
		if err := runValidate(cfg, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, describeError(err))
			_ = logger.Sync()
			os.Exit(1)
		}
	case checkCmd.FullCommand():
		if err := runCheck(cfg, logger, os.Stdout); err != nil {
			_ = logger.Sync()
			os.Exit(1)
		}
	}
}

func serve(cfg config.Config, logger *zap.Logger) {
	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), app.Reload, cfg.ShutdownGracePeriod, logger)
}

// runValidate resolves the settings and writes them as redacted YAML.
func runValidate(cfg config.Config, out io.Writer) error {
	resolved, err := application.LoadSettings(cfg)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(resolved.Redacted()); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

func runCheck(cfg config.Config, logger *zap.Logger, out io.Writer) error {
	resolved, err := application.LoadSettings(cfg)
	if err != nil {
		logger.Error("failed to resolve settings", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CheckTimeout)
	defer cancel()

	results, err := application.RunChecks(ctx, application.Checkers(resolved, logger), logger)
	writeCheckResults(out, results)
	return err
}

func writeCheckResults(out io.Writer, results []application.CheckResult) {
	for _, result := range results {
		status := "ok"
		if result.Err != nil {
			status = "FAIL: " + result.Err.Error()
		}
		fmt.Fprintf(out, "%-12s %s\n", result.Name, status)
	}
}

// describeError renders resolver failures with their kind so scripts can match on it.
func describeError(err error) string {
	var cfgErr *settings.ConfigError
	if errors.As(err, &cfgErr) {
		return fmt.Sprintf("invalid settings (%s): %v", cfgErr.KindName(), cfgErr)
	}
	return fmt.Sprintf("failed to resolve settings: %v", err)
}

// shutdown blocks until a termination signal arrives. SIGHUP triggers reload
// instead; a failed reload leaves the server running.
func shutdown(server *http.Server, reload func() error, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range quit {
		if sig != syscall.SIGHUP {
			break
		}
		if reload == nil {
			continue
		}
		logger.Info("reloading settings")
		if err := reload(); err != nil {
			logger.Warn("reload failed", zap.Error(err))
		}
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}

package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/storeconf/internal/api"
	"github.com/eugenenazirov/storeconf/internal/config"
	"github.com/eugenenazirov/storeconf/internal/settings"
	"github.com/eugenenazirov/storeconf/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	cfg    config.Config
	store  *storage.MemoryStorage
	logger *zap.Logger
	server *http.Server
}

// LoadSettings resolves the configured settings files followed by the
// environment overlay.
func LoadSettings(cfg config.Config) (settings.Settings, error) {
	sources := make([]settings.Source, 0, len(cfg.SettingsFiles)+1)
	for _, path := range cfg.SettingsFiles {
		sources = append(sources, settings.File(path))
	}
	if cfg.EnvPrefix != "" {
		sources = append(sources, settings.Env(cfg.EnvPrefix))
	}
	return settings.Resolve(sources...)
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	resolved, err := LoadSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}
	logger.Info("settings resolved",
		zap.Strings("files", cfg.SettingsFiles),
		zap.Strings("sections", resolved.Sections()),
	)

	store, err := storage.NewMemoryStorage(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	handler := api.NewHandler(store)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		cfg:    cfg,
		store:  store,
		logger: logger,
		server: NewServer(cfg, apiRouter),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Settings returns the settings currently served.
func (a *App) Settings() settings.Settings {
	snap, _ := a.store.Current()
	return snap.Settings
}

// Reload resolves the settings sources again and swaps them in. On failure
// the previous settings keep being served.
func (a *App) Reload() error {
	resolved, err := LoadSettings(a.cfg)
	if err != nil {
		a.logger.Error("settings reload failed, keeping previous revision", zap.Error(err))
		return fmt.Errorf("failed to resolve settings: %w", err)
	}
	snap, err := a.store.Replace(resolved)
	if err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}
	a.logger.Info("settings reloaded",
		zap.Uint64("revision", snap.Revision),
		zap.Strings("sections", resolved.Sections()),
	)
	return nil
}

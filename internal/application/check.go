package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/storeconf/internal/cache"
	"github.com/eugenenazirov/storeconf/internal/objectstore"
	"github.com/eugenenazirov/storeconf/internal/settings"
)

// Checker probes one configured backend.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckResult is the outcome of a single probe.
type CheckResult struct {
	Name string
	Err  error
}

type cacheChecker struct {
	cfg    settings.CacheConnectionSettings
	logger *zap.Logger
}

func (c cacheChecker) Name() string { return settings.CacheSection }

func (c cacheChecker) Check(ctx context.Context) error {
	client, err := cache.NewClient(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	return cache.Ping(ctx, client)
}

type objectStoreChecker struct {
	cfg    settings.ObjectStoreSettings
	logger *zap.Logger
}

func (c objectStoreChecker) Name() string { return settings.ObjectStoreSection }

func (c objectStoreChecker) Check(ctx context.Context) error {
	client, err := objectstore.NewClient(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	return objectstore.EnsureBucket(ctx, client, c.cfg)
}

// Checkers returns a probe for every configured section.
func Checkers(resolved settings.Settings, logger *zap.Logger) []Checker {
	var checkers []Checker
	if cfg, ok := resolved.Cache(); ok {
		checkers = append(checkers, cacheChecker{cfg: cfg, logger: logger})
	}
	if cfg, ok := resolved.ObjectStore(); ok {
		checkers = append(checkers, objectStoreChecker{cfg: cfg, logger: logger})
	}
	return checkers
}

// RunChecks runs every checker and returns the individual results together
// with the joined error of the failed ones.
func RunChecks(ctx context.Context, checkers []Checker, logger *zap.Logger) ([]CheckResult, error) {
	results := make([]CheckResult, 0, len(checkers))
	var errs []error
	for _, checker := range checkers {
		err := checker.Check(ctx)
		results = append(results, CheckResult{Name: checker.Name(), Err: err})
		if err != nil {
			logger.Error("check failed", zap.String("section", checker.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", checker.Name(), err))
			continue
		}
		logger.Info("check passed", zap.String("section", checker.Name()))
	}
	return results, errors.Join(errs...)
}

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	logger "github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/rios0rios0/prefetch/application"
	"github.com/rios0rios0/prefetch/config"
	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/fetcher"
	"github.com/rios0rios0/prefetch/infrastructure/fetcher/archive"
	"github.com/rios0rios0/prefetch/infrastructure/fetcher/git"
	"github.com/rios0rios0/prefetch/infrastructure/ledger"
	"github.com/rios0rios0/prefetch/infrastructure/mirror"
)

// buildContainer wires the whole object graph (bottom-up: config ->
// infrastructure stores -> application services). Providers are lazy, so a
// command only constructs what it actually injects.
func buildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		loadConfig,
		newFetcherSource,
		newLedger,
		newMirror,
		application.NewSyncService,
		application.NewOutdatedService,
		application.NewVerifyService,
		application.NewPruneService,
	}
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider: %w", err)
		}
	}

	return container, nil
}

// invoke runs a command body with its dependencies injected.
func invoke(function any) error {
	container, err := buildContainer()
	if err != nil {
		return err
	}
	if err := container.Invoke(function); err != nil {
		return dig.RootCause(err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		found, err := config.FindConfigFile()
		if err != nil {
			logger.Debugf("No config file found, using defaults: %v", err)
			return config.Default(), nil
		}
		path = found
	}

	logger.Debugf("Using config file: %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newFetcherSource builds the transport registry. The archive fetcher is
// consulted first so archive URLs on git hosts do not fall through to the
// git transport.
func newFetcherSource() domain.FetcherSource {
	registry := fetcher.NewRegistry()
	registry.Register(archive.New(nil))
	registry.Register(git.New())
	return registry
}

func newLedger(cfg *config.Config) (domain.Ledger, error) {
	return ledger.Open(filepath.Join(cfg.CacheRoot, ledger.DefaultFile))
}

// newMirror builds the shared remote cache when one is configured. The
// mirror is best effort end to end: an unreachable bucket degrades to
// origin fetches instead of failing the build.
func newMirror(cfg *config.Config) (domain.Mirror, error) {
	mirrorCfg := mirror.Config{
		Endpoint:  cfg.Mirror.Endpoint,
		AccessKey: cfg.Mirror.AccessKey,
		SecretKey: cfg.Mirror.SecretKey,
		Bucket:    cfg.Mirror.Bucket,
		Region:    cfg.Mirror.Region,
		UseSSL:    cfg.Mirror.UseSSL,
	}
	if !mirrorCfg.Configured() {
		return mirror.NewDisabled(), nil
	}

	store, err := mirror.New(mirrorCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mirror: %w", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		logger.Warnf("Mirror bucket %q is not reachable, continuing without it: %v",
			mirrorCfg.Bucket, err)
	}
	return store, nil
}

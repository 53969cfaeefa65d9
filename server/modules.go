package main

import (
	"context"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/pailer/pailer-core/server/backend"
	"github.com/pailer/pailer-core/server/kvstore"
	"github.com/pailer/pailer-core/server/poster"
	"github.com/pailer/pailer-core/server/settings"
	"github.com/pailer/pailer-core/server/updatelog"
)

// Data files under the data directory
const (
	settingsFile = "store.json"
	backendFile  = "backend.json"
	historyFile  = "update_logs.json"
)

// ConfigModule provides the configuration and the root logger.
var ConfigModule = fx.Module("config",
	fx.Provide(
		provideConfiguration,
		newLogger,
	),
)

// StoreModule provides the settings, backend and history key-value stores.
var StoreModule = fx.Module("store",
	fx.Provide(provideStores),
)

// SettingsModule provides the user-facing settings store.
var SettingsModule = fx.Module("settings",
	fx.Provide(provideSettingsStore),
)

// BackendModule provides the backend config service and the auto-updater.
var BackendModule = fx.Module("backend",
	fx.Provide(
		provideConfigService,
		providePackageManager,
		provideAutoUpdater,
	),
)

// HistoryModule provides the update history.
var HistoryModule = fx.Module("history",
	fx.Provide(provideHistory),
)

// EventsModule provides the event stream and the progress poster writing to it.
var EventsModule = fx.Module("events",
	fx.Provide(
		NewEventHub,
		providePoster,
	),
)

// ServerModule builds the daemon and ties it to the application lifecycle.
var ServerModule = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(registerLifecycle),
)

func provideConfiguration() (*configuration, error) {
	return loadConfiguration(os.Getenv)
}

// Stores groups the key-value stores by role.
type Stores struct {
	fx.Out
	Settings kvstore.KVStore `name:"settings"`
	Backend  kvstore.KVStore `name:"backend"`
	History  kvstore.KVStore `name:"history"`
}

// provideStores opens the data files, or in-memory stores when no data directory is configured.
func provideStores(cfg *configuration, logger hclog.Logger) (Stores, error) {
	if cfg.DataDir == "" {
		logger.Warn("No data directory configured, settings will not be persisted")
		return Stores{
			Settings: kvstore.NewMemoryStore(),
			Backend:  kvstore.NewMemoryStore(),
			History:  kvstore.NewMemoryStore(),
		}, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Stores{}, errors.Wrap(err, "failed to create data directory")
	}

	var stores Stores
	for _, file := range []struct {
		name string
		kv   *kvstore.KVStore
	}{
		{settingsFile, &stores.Settings},
		{backendFile, &stores.Backend},
		{historyFile, &stores.History},
	} {
		store, err := kvstore.OpenFile(cfg.path(file.name))
		if err != nil {
			return Stores{}, errors.Wrapf(err, "failed to open %s", file.name)
		}
		*file.kv = store
	}

	logger.Info("Data stores opened", "dataDir", cfg.DataDir)
	return stores, nil
}

// SettingsStoreParams groups dependencies for the settings store
type SettingsStoreParams struct {
	fx.In
	KV     kvstore.KVStore `name:"settings"`
	Config *backend.ConfigService
	Logger hclog.Logger
}

func provideSettingsStore(p SettingsStoreParams) *settings.Store {
	return settings.NewStore(p.KV, p.Config, p.Logger)
}

// ConfigServiceParams groups dependencies for the backend config service
type ConfigServiceParams struct {
	fx.In
	KV     kvstore.KVStore `name:"backend"`
	Logger hclog.Logger
}

func provideConfigService(p ConfigServiceParams) *backend.ConfigService {
	return backend.NewConfigService(p.KV, p.Logger)
}

func providePackageManager(cfg *configuration, logger hclog.Logger) backend.PackageManager {
	return backend.NewScoopManager(cfg.ScoopPath, backend.ExecRunner{}, logger)
}

// AutoUpdaterParams groups dependencies for the auto-updater
type AutoUpdaterParams struct {
	fx.In
	Configuration *configuration
	Config        *backend.ConfigService
	KV            kvstore.KVStore `name:"backend"`
	Manager       backend.PackageManager
	Poster        *poster.Poster
	History       *updatelog.Store
	Logger        hclog.Logger
}

func provideAutoUpdater(p AutoUpdaterParams) *backend.AutoUpdater {
	return backend.NewAutoUpdater(
		p.Config,
		backend.NewStateStore(p.KV),
		p.Manager,
		p.Poster,
		p.History,
		p.Configuration.CheckInterval,
		p.Logger,
	)
}

// HistoryParams groups dependencies for the update history
type HistoryParams struct {
	fx.In
	Configuration *configuration
	KV            kvstore.KVStore `name:"history"`
	Logger        hclog.Logger
}

func provideHistory(p HistoryParams) (*updatelog.Store, error) {
	return updatelog.Open(p.KV, p.Configuration.HistoryLimit, p.Logger)
}

func providePoster(hub *EventHub) *poster.Poster {
	return poster.New(hub)
}

// registerLifecycle activates the daemon on start and deactivates it on stop.
func registerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Activate(ctx); err != nil {
				return err
			}
			return s.Serve()
		},
		OnStop: func(ctx context.Context) error {
			return s.Deactivate(ctx)
		},
	})
}

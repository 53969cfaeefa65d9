package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/pailer/pailer-core/server/backend"
	"github.com/pailer/pailer-core/server/updatelog"
)

// Environment variables read by loadConfiguration
const (
	envDataDir       = "PAILER_DATA_DIR"
	envListenAddr    = "PAILER_LISTEN_ADDR"
	envAPIToken      = "PAILER_API_TOKEN"
	envLogLevel      = "PAILER_LOG_LEVEL"
	envScoopPath     = "PAILER_SCOOP_PATH"
	envHistoryLimit  = "PAILER_HISTORY_LIMIT"
	envCheckInterval = "PAILER_CHECK_INTERVAL"

	defaultListenAddr = "127.0.0.1:7878"
	defaultLogLevel   = "info"
)

// configuration captures the daemon's external configuration, read from the environment (and an
// optional .env file) at startup.
//
// Access to the configuration is synchronized by guarding a pointer to it and cloning the entire
// struct whenever it changes. If you add reference types to the struct, rewrite Clone as a deep
// copy appropriate for your types.
type configuration struct {
	// DataDir holds the settings, backend and history files. Empty keeps everything in memory.
	DataDir string

	// ListenAddr is the address of the HTTP command bridge.
	ListenAddr string

	// APIToken, when set, must be presented as a bearer token on every API request.
	APIToken string

	// LogLevel is an hclog level name.
	LogLevel string

	// ScoopPath is the root of the scoop installation.
	ScoopPath string

	// HistoryLimit caps the number of update history entries kept.
	HistoryLimit int

	// CheckInterval is how often the auto-updater re-reads its schedule.
	CheckInterval time.Duration
}

// Clone shallow copies the configuration.
func (c *configuration) Clone() *configuration {
	clone := *c
	return &clone
}

// IsValid checks that the configuration can be used to start the daemon.
func (c *configuration) IsValid() error {
	if c.ListenAddr == "" {
		return errors.New("listen address cannot be empty")
	}

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return errors.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.HistoryLimit <= 0 {
		return errors.Errorf("history limit must be positive (got %d)", c.HistoryLimit)
	}

	if c.CheckInterval < backend.MinCheckInterval {
		return errors.Errorf("check interval must be at least %s (got %s)", backend.MinCheckInterval, c.CheckInterval)
	}
	if c.CheckInterval > backend.MaxCheckInterval {
		return errors.Errorf("check interval must be at most %s (got %s)", backend.MaxCheckInterval, c.CheckInterval)
	}

	return nil
}

// path returns the location of a data file, or "" when running in memory.
func (c *configuration) path(name string) string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, name)
}

// loadConfiguration reads the configuration using getenv, applying defaults for unset values.
func loadConfiguration(getenv func(string) string) (*configuration, error) {
	c := &configuration{
		DataDir:       getenv(envDataDir),
		ListenAddr:    getenvDefault(getenv, envListenAddr, defaultListenAddr),
		APIToken:      getenv(envAPIToken),
		LogLevel:      strings.ToLower(getenvDefault(getenv, envLogLevel, defaultLogLevel)),
		ScoopPath:     getenv(envScoopPath),
		HistoryLimit:  updatelog.DefaultMaxEntries,
		CheckInterval: backend.DefaultCheckInterval,
	}

	if c.ScoopPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to locate scoop installation")
		}
		c.ScoopPath = filepath.Join(home, "scoop")
	}

	if value := getenv(envHistoryLimit); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", envHistoryLimit)
		}
		c.HistoryLimit = limit
	}

	if value := getenv(envCheckInterval); value != "" {
		checkInterval, err := time.ParseDuration(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", envCheckInterval)
		}
		c.CheckInterval = checkInterval
	}

	if err := c.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}

func getenvDefault(getenv func(string) string, key, fallback string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return fallback
}

// getConfiguration retrieves the active configuration under lock, making it safe to use
// concurrently. The active configuration may change underneath the client of this method, but
// the struct returned by this API call is considered immutable.
func (s *Server) getConfiguration() *configuration {
	s.configurationLock.RLock()
	defer s.configurationLock.RUnlock()

	if s.configuration == nil {
		return &configuration{}
	}

	return s.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// This method panics if setConfiguration is called with the existing configuration. This almost
// certainly means that the configuration was modified without being cloned and may result in
// an unsafe access.
func (s *Server) setConfiguration(configuration *configuration) {
	s.configurationLock.Lock()
	defer s.configurationLock.Unlock()

	if configuration != nil && s.configuration == configuration {
		// Ignore assignment if the configuration struct is empty. Go will optimize the
		// allocation for same to point at the same memory address, breaking the check
		// above.
		if reflect.ValueOf(*configuration).NumField() == 0 {
			return
		}

		panic("setConfiguration called with the existing configuration")
	}

	s.configuration = configuration
}

// OnConfigurationChange reloads the configuration. The API token and log level take effect
// immediately; other changes are logged and apply after a restart.
func (s *Server) OnConfigurationChange(getenv func(string) string) error {
	newConfig, err := loadConfiguration(getenv)
	if err != nil {
		return errors.Wrap(err, "failed to reload configuration")
	}

	oldConfig := s.getConfiguration()

	configClone := oldConfig.Clone()
	configClone.APIToken = newConfig.APIToken
	configClone.LogLevel = newConfig.LogLevel
	s.setConfiguration(configClone)

	s.logger.SetLevel(hclog.LevelFromString(configClone.LogLevel))

	if oldConfig.DataDir != newConfig.DataDir ||
		oldConfig.ListenAddr != newConfig.ListenAddr ||
		oldConfig.ScoopPath != newConfig.ScoopPath ||
		oldConfig.HistoryLimit != newConfig.HistoryLimit ||
		oldConfig.CheckInterval != newConfig.CheckInterval {
		s.logger.Warn("Configuration changes require a restart to take effect")
	}

	s.logger.Info("Configuration reloaded", "logLevel", configClone.LogLevel, "apiTokenSet", configClone.APIToken != "")
	return nil
}

package main

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/pailer/pailer-core/server/backend"
	"github.com/pailer/pailer-core/server/settings"
	"github.com/pailer/pailer-core/server/updatelog"
)

const shutdownTimeout = 10 * time.Second

// Server is the daemon: the settings store, the backend services and the HTTP command bridge
// the UI talks to.
type Server struct {
	logger hclog.Logger

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// settings is the user-facing settings store.
	settings *settings.Store

	// config is the backend key-value command surface the settings store mirrors into.
	config *backend.ConfigService

	// autoUpdater runs scheduled bucket and package updates.
	autoUpdater *backend.AutoUpdater

	// history is the update history.
	history *updatelog.Store

	// events streams progress events to clients.
	events *EventHub

	router     *mux.Router
	httpServer *http.Server
}

// NewServer wires the daemon's components together.
func NewServer(
	cfg *configuration,
	logger hclog.Logger,
	settingsStore *settings.Store,
	config *backend.ConfigService,
	autoUpdater *backend.AutoUpdater,
	history *updatelog.Store,
	events *EventHub,
) *Server {
	s := &Server{
		logger:      logger,
		settings:    settingsStore,
		config:      config,
		autoUpdater: autoUpdater,
		history:     history,
		events:      events,
	}
	s.setConfiguration(cfg)
	s.router = s.newRouter()
	return s
}

// Activate loads the settings, brings the backend in line with them and starts the auto-updater.
// If an error is returned the daemon does not start.
func (s *Server) Activate(ctx context.Context) error {
	if err := s.settings.Load(ctx); err != nil {
		return errors.Wrap(err, "failed to load settings")
	}

	// A failed sync leaves the backend on its previous values; the next save mirrors again.
	if err := s.settings.Sync(ctx); err != nil {
		s.logger.Warn("Failed to sync settings to backend", "error", err.Error())
	}

	if err := s.autoUpdater.Start(); err != nil {
		return errors.Wrap(err, "failed to start auto-updater")
	}

	current, err := s.settings.Get()
	if err != nil {
		return errors.Wrap(err, "failed to read settings")
	}

	s.logger.Info("Daemon activated",
		"autoUpdateInterval", current.AutoUpdateInterval,
		"debug", current.DebugEnabled)
	return nil
}

// Serve starts the HTTP command bridge on the configured address.
func (s *Server) Serve() error {
	listener, err := net.Listen("tcp", s.getConfiguration().ListenAddr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err.Error())
		}
	}()

	s.logger.Info("HTTP server listening", "addr", listener.Addr().String())
	return nil
}

// Deactivate stops the HTTP server, the event stream and the auto-updater.
func (s *Server) Deactivate(ctx context.Context) error {
	var result error

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shut down HTTP server", "error", err.Error())
			result = errors.Wrap(err, "failed to shut down HTTP server")
		}
	}

	s.events.Close()

	if err := s.autoUpdater.Stop(); err != nil {
		s.logger.Error("Failed to stop auto-updater during deactivation", "error", err.Error())
		result = errors.Wrap(err, "failed to stop auto-updater")
	}

	return result
}

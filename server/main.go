package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	app := fx.New(
		ConfigModule,   // Provides: *configuration, hclog.Logger
		StoreModule,    // Provides: kvstore.KVStore (named: "settings", "backend", "history")
		BackendModule,  // Provides: *backend.ConfigService, backend.PackageManager, *backend.AutoUpdater
		SettingsModule, // Provides: *settings.Store
		HistoryModule,  // Provides: *updatelog.Store
		EventsModule,   // Provides: *EventHub, *poster.Poster
		ServerModule,   // Activates the daemon and serves the HTTP command bridge
		fx.Invoke(reloadOnHangup),

		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ConsoleLogger{W: log.Writer()}
		}),
	)

	// Run blocks until the app receives a shutdown signal
	app.Run()
}

// reloadOnHangup re-reads the .env file and reloads the configuration on SIGHUP.
func reloadOnHangup(lc fx.Lifecycle, s *Server) {
	hangup := make(chan os.Signal, 1)
	done := make(chan struct{})

	lc.Append(fx.StartStopHook(
		func() {
			signal.Notify(hangup, syscall.SIGHUP)
			go func() {
				for {
					select {
					case <-hangup:
						if err := godotenv.Overload(); err != nil {
							s.logger.Debug("No .env file to reload", "error", err.Error())
						}
						if err := s.OnConfigurationChange(os.Getenv); err != nil {
							s.logger.Error("Failed to reload configuration", "error", err.Error())
						}
					case <-done:
						return
					}
				}
			}()
		},
		func() {
			signal.Stop(hangup)
			close(done)
		},
	))
}

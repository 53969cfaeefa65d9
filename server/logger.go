package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// newLogger creates the root logger. Components derive named loggers from it.
func newLogger(cfg *configuration) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "pailer",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})
}

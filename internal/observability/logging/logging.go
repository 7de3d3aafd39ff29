// Package logging constructs the zap logger shared by the sender and
// receiver binaries.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects the logger's build mode and verbosity.
type Config struct {
	Development bool
	Level       string // debug, info, warn, error
}

// DefaultConfig returns a production logger at info level, the way a
// transfer binary should log by default.
func DefaultConfig() *Config {
	return &Config{
		Development: false,
		Level:       "info",
	}
}

// New builds a zap.Logger from cfg. Callers should defer logger.Sync()
// immediately after a successful call.
func New(cfg *Config) (*zap.Logger, error) {
	var level zap.AtomicLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging: parse level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

// Sync flushes buffered log entries, swallowing the sync-on-stderr error
// that stdout/stderr-backed zap loggers return on some platforms.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// Package logger provides structured logging using Zap.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	mu    sync.Mutex
)

// Init initializes the global logger for the given environment and level.
// For "production", it uses a JSON encoder. "test" installs a no-op logger so
// test output stays clean. All other environments use the console encoder.
// An empty or unknown level keeps the environment's default.
func Init(env, level string) {
	mu.Lock()
	defer mu.Unlock()
	if sugar != nil {
		return
	}

	var cfg zap.Config
	switch env {
	case "test":
		sugar = zap.NewNop().Sugar()
		return
	case "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if lvl, ok := parseLevel(level); ok {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	base, err := cfg.Build()
	if err != nil {
		// Fallback to nop logger if initialization fails.
		base = zap.NewNop()
	}
	sugar = base.Sugar()
}

// Get returns the global sugared logger.
// If Init has not been called, it initializes a development logger.
func Get() *zap.SugaredLogger {
	mu.Lock()
	s := sugar
	mu.Unlock()
	if s == nil {
		Init("development", "")
		return Get()
	}
	return s
}

// Named returns a child of the global logger scoped to a component.
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func parseLevel(s string) (zapcore.Level, bool) {
	if s == "" {
		return zapcore.InfoLevel, false
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

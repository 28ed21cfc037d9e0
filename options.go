package coderun

import (
	"fmt"

	"github.com/oarkflow/log"
)

type Option func(*Engine) error

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		e.logger = logger
		return nil
	}
}

func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(e *Engine) error {
		if cfg.LoopLimit < 0 {
			return fmt.Errorf("loop limit must not be negative, got %d", cfg.LoopLimit)
		}
		if cfg.MaxExpressionDepth < 0 {
			return fmt.Errorf("max expression depth must not be negative, got %d", cfg.MaxExpressionDepth)
		}
		e.config = cfg
		return nil
	}
}

func WithProgramCache(cache *ProgramCache) Option {
	return func(e *Engine) error {
		e.cache = cache
		return nil
	}
}

func WithName(name string) Option {
	return func(e *Engine) error {
		e.name = name
		return nil
	}
}

// WithFunction registers a native function while the engine is built.
func WithFunction(name string, fn NativeFunc) Option {
	return func(e *Engine) error {
		return e.RegisterFunction(name, fn)
	}
}

// WithValue registers a host value while the engine is built.
func WithValue(name string, value any, perm ...Permission) Option {
	return func(e *Engine) error {
		return e.RegisterValue(name, value, perm...)
	}
}

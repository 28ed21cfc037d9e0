package coderun

import (
	"sync"
)

type RuntimeConfig struct {
	// LoopLimit is the number of body executions one loop statement may
	// perform before it is stopped. Zero or less selects the default.
	LoopLimit          int
	MaxExpressionDepth int
	LogExecution       bool
}

const DefaultLoopLimit = 1000

var (
	runtimeConfigMu sync.RWMutex
	runtimeConfig   = RuntimeConfig{
		LoopLimit:          DefaultLoopLimit,
		MaxExpressionDepth: 64,
		LogExecution:       false,
	}
)

func SetRuntimeConfig(cfg RuntimeConfig) {
	runtimeConfigMu.Lock()
	defer runtimeConfigMu.Unlock()
	runtimeConfig = cfg
}

func GetRuntimeConfig() RuntimeConfig {
	runtimeConfigMu.RLock()
	defer runtimeConfigMu.RUnlock()
	return runtimeConfig
}

func (c RuntimeConfig) loopLimit() int {
	if c.LoopLimit <= 0 {
		return DefaultLoopLimit
	}
	return c.LoopLimit
}

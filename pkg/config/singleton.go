package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// The process-wide configuration. Commands publish it once loaded, and
// long-running components read it again on every run so that a reload
// reaches them without a restart.
var current atomic.Pointer[Config]

var (
	hooksMu  sync.Mutex
	hooks    = make(map[int]func(*Config))
	nextHook int
)

// GetConfig returns the published configuration, or nil before SetConfig.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig publishes cfg.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// OnReload registers fn to run after every successful ReloadConfig with the
// new configuration. The returned function unregisters it.
func OnReload(fn func(*Config)) (remove func()) {
	hooksMu.Lock()
	defer hooksMu.Unlock()

	id := nextHook
	nextHook++
	hooks[id] = fn

	return func() {
		hooksMu.Lock()
		defer hooksMu.Unlock()
		delete(hooks, id)
	}
}

// ReloadConfig loads path with environment overrides, publishes the result
// and runs the reload hooks. On error the current configuration stays.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	SetConfig(cfg)

	hooksMu.Lock()
	fns := make([]func(*Config), 0, len(hooks))
	for _, fn := range hooks {
		fns = append(fns, fn)
	}
	hooksMu.Unlock()

	for _, fn := range fns {
		fn(cfg)
	}
	return nil
}

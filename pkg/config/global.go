package config

import (
	"sync"

	"github.com/ucg-engine/pkg/errors"
)

// globalState is the process-wide list of registered config tables
// and the init-once guard described for the core's global mutable
// state (§6, §9): GlobalInit must run once before any context is
// created, and GlobalCleanup releases every table registered since.
var (
	globalMu     sync.Mutex
	globalTables []*Config
	globalReady  bool
)

// GlobalInit performs the library's call-once-before-any-context
// setup. It is an error to call it twice without an intervening
// GlobalCleanup, matching the "init-once mutex at startup" contract.
func GlobalInit() *errors.Status {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalReady {
		return errors.New(errors.InvalidParam, "global_init called twice without an intervening global_cleanup")
	}
	globalReady = true
	return errors.Ok()
}

// GlobalCleanup releases every config table registered through Read
// since the matching GlobalInit and clears the singleton so a later
// GlobalInit can start fresh.
func GlobalCleanup() *errors.Status {
	globalMu.Lock()
	defer globalMu.Unlock()
	if !globalReady {
		return errors.New(errors.InvalidParam, "global_cleanup called without a matching global_init")
	}
	for _, c := range globalTables {
		c.Release()
	}
	globalTables = nil
	globalReady = false
	return errors.Ok()
}

// registerGlobal records cfg in the process-wide table list, a no-op
// when called outside a GlobalInit/GlobalCleanup bracket.
func registerGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalReady {
		globalTables = append(globalTables, cfg)
	}
}

// Read is the public config_read entry point (§6): it loads the
// config table the same way Load does, registers it with the global
// table list, and reports failure as a *errors.Status rather than a
// bare error, matching "all public routines return a status code"
// (§7). Internal callers that already hold a context lock and don't
// need global-table bookkeeping use Load directly.
func Read(configPath string) (*Config, *errors.Status) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidParam, "config_read failed", err)
	}
	registerGlobal(cfg)
	return cfg, errors.Ok()
}

// Release is the public config_release entry point (§6): it discards
// this table's viper instance. Config fields remain readable (they
// are plain Go values), and the table stays on the global list until
// GlobalCleanup.
func (c *Config) Release() {
	c.v = nil
}

// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config is the environment/flag-driven configuration for the
// iorepair CLI. Library packages (asset, mapping, classify, reconcile,
// patch, batch) are configured directly through Go structs passed by
// the caller; this package only covers the knobs the command-line
// surface exposes.
package config

import (
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the CLI-level settings that can be overridden by
// environment variables. All fields have usable defaults.
type Config struct {
	// Debug enables verbose diagnostic logging to stderr when DEBUG=1
	// is set in the environment.
	Debug bool `env:"DEBUG" env-default:"false" env-description:"Enable verbose diagnostic logging."`

	// MaxParallelism bounds the batch worker pool. Zero means "use
	// available hardware concurrency".
	MaxParallelism int `env:"IOREPAIR_THREADS" env-default:"0" env-description:"Maximum batch worker count. 0 means runtime.NumCPU()."`

	// ScanCapBytes bounds the signature scan per body file.
	ScanCapBytes int `env:"IOREPAIR_SCAN_CAP" env-default:"500000" env-description:"Maximum bytes scanned per body file when locating the material array signature."`
}

// Load reads Config from the process environment. Unset variables keep
// their env-default value.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolvedParallelism returns flagValue when it is positive (an explicit
// CLI override), otherwise MaxParallelism when it is positive, and
// otherwise runtime.NumCPU().
func (c Config) ResolvedParallelism(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if c.MaxParallelism > 0 {
		return c.MaxParallelism
	}
	return runtime.NumCPU()
}

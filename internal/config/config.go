// Package config provides configuration types, defaults, and persistence
// for shellfw.
package config

import (
	"time"

	"github.com/zjrosen/shellfw/internal/tracing"
)

// Config holds all configuration options for shellfw.
type Config struct {
	// Shell is the unprivileged shell binary.
	Shell string `mapstructure:"shell"`

	// ShellArgs are extra arguments for the unprivileged shell.
	ShellArgs []string `mapstructure:"shell_args"`

	// Su is the elevated-privilege shell helper binary.
	Su string `mapstructure:"su"`

	// SuArgs are extra arguments for the privileged shell.
	SuArgs []string `mapstructure:"su_args"`

	// StderrCapacity bounds the per-process stderr ring buffer.
	StderrCapacity int `mapstructure:"stderr_capacity"`

	// LocatorTTL is how long resolved binary paths stay cached.
	LocatorTTL time.Duration `mapstructure:"locator_ttl"`

	// Tracing configures the OpenTelemetry subsystem.
	Tracing tracing.Config `mapstructure:"tracing"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Shell:          "sh",
		Su:             "su",
		StderrCapacity: 100,
		LocatorTTL:     10 * time.Minute,
		Tracing:        tracing.DefaultConfig(),
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultFileHeader = `# shellfw configuration
#
# shell:            unprivileged shell binary (default: sh)
# su:               privileged shell helper binary (default: su)
# stderr_capacity:  retained stderr lines per process
# locator_ttl:      cache lifetime for resolved binary paths
# tracing:          OpenTelemetry setup; exporter is one of none|file|stdout|otlp
`

// fileConfig mirrors Config with yaml tags for serialization.
type fileConfig struct {
	Shell          string         `yaml:"shell"`
	Su             string         `yaml:"su"`
	StderrCapacity int            `yaml:"stderr_capacity"`
	LocatorTTL     string         `yaml:"locator_ttl"`
	Tracing        map[string]any `yaml:"tracing"`
}

// WriteDefaultConfig writes a commented default config file at path,
// creating parent directories as needed. Existing files are left alone.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaults := Defaults()
	body, err := yaml.Marshal(fileConfig{
		Shell:          defaults.Shell,
		Su:             defaults.Su,
		StderrCapacity: defaults.StderrCapacity,
		LocatorTTL:     defaults.LocatorTTL.String(),
		Tracing: map[string]any{
			"enabled":       defaults.Tracing.Enabled,
			"exporter":      defaults.Tracing.Exporter,
			"otlp_endpoint": defaults.Tracing.OTLPEndpoint,
			"sample_rate":   defaults.Tracing.SampleRate,
			"service_name":  defaults.Tracing.ServiceName,
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}

	content := append([]byte(defaultFileHeader+"\n"), body...)
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

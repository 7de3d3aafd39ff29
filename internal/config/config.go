// Package config loads the optional YAML overlay accepted by the qsend
// and qrecv binaries via their -config flag.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/quantumxfer/quantumxfer/internal/observability/logging"
	"github.com/quantumxfer/quantumxfer/internal/observability/tracing"
	"github.com/quantumxfer/quantumxfer/internal/quantum/fec"
)

// Config is the full set of tunables a transfer binary accepts beyond its
// four positional arguments, which stay CLI-only per the wire protocol's
// external interface.
type Config struct {
	FEC     FECConfig     `yaml:"FEC"`
	Logging LoggingConfig `yaml:"Logging"`
	Metrics MetricsConfig `yaml:"Metrics"`
	Tracing TracingConfig `yaml:"Tracing"`
}

// FECConfig mirrors fec.Config, with YAML tags of its own since fec.Config
// has none.
type FECConfig struct {
	DataShards   int `yaml:"DataShards"`
	ParityShards int `yaml:"ParityShards"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Development bool   `yaml:"Development"`
	Level       string `yaml:"Level"`
}

// MetricsConfig names the Prometheus collectors; whether the HTTP listener
// runs is decided by the -metrics-addr flag, not by this file.
type MetricsConfig struct {
	Namespace string `yaml:"Namespace"`
	Subsystem string `yaml:"Subsystem"`
}

// TracingConfig mirrors tracing.Config, minus Endpoint and Enable, which
// come from the -trace-endpoint flag.
type TracingConfig struct {
	ServiceName string  `yaml:"ServiceName"`
	SampleRate  float64 `yaml:"SampleRate"`
}

// DefaultConfig returns the configuration a binary runs with when no
// -config flag is given.
func DefaultConfig() *Config {
	return &Config{
		FEC: FECConfig{
			DataShards:   fec.DefaultDataShards,
			ParityShards: fec.DefaultParityShards,
		},
		Logging: LoggingConfig{
			Development: false,
			Level:       "info",
		},
		Metrics: MetricsConfig{
			Namespace: "quantumxfer",
			Subsystem: "transfer",
		},
		Tracing: TracingConfig{
			ServiceName: "quantumxfer",
			SampleRate:  1.0,
		},
	}
}

// Load reads filename and unmarshals it over DefaultConfig(). A missing
// file is not an error: the caller gets plain defaults, matching
// loadConfig's behavior in the teacher's session-service binary.
func Load(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return cfg, nil
}

// FECOptions converts to fec.Config.
func (c *Config) FECOptions() *fec.Config {
	return &fec.Config{
		DataShards:   c.FEC.DataShards,
		ParityShards: c.FEC.ParityShards,
	}
}

// LoggingOptions converts to logging.Config.
func (c *Config) LoggingOptions() *logging.Config {
	return &logging.Config{
		Development: c.Logging.Development,
		Level:       c.Logging.Level,
	}
}

// MetricsOptions returns the namespace/subsystem pair metrics.New expects.
func (c *Config) MetricsOptions() (namespace, subsystem string) {
	return c.Metrics.Namespace, c.Metrics.Subsystem
}

// TracingOptions converts to tracing.Config, filling in enable/endpoint
// from the CLI flags since those two never come from the file.
func (c *Config) TracingOptions(enable bool, endpoint string) *tracing.Config {
	return &tracing.Config{
		Enable:      enable,
		ServiceName: c.Tracing.ServiceName,
		Endpoint:    endpoint,
		SampleRate:  c.Tracing.SampleRate,
	}
}

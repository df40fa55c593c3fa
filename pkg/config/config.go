// Package config provides configuration loading and management for geoem1d.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
	"geoem1d/pkg/forward"
	"geoem1d/pkg/fourier"
	"geoem1d/pkg/hankel"
	"geoem1d/pkg/layers"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Engine parameters
	Engine struct {
		// Workers specifies how many work items run concurrently
		Workers int `yaml:"workers"`

		// MinOffset is the smallest horizontal offset in m
		MinOffset float64 `yaml:"minOffset"`

		// BoundaryPolicy resolves depths on interfaces: error, above or below
		BoundaryPolicy string `yaml:"boundaryPolicy"`

		// DirectInKernel keeps the direct wave in the wavenumber domain
		DirectInKernel bool `yaml:"directInKernel"`

		// ConditionLimit is the threshold for instability warnings; 0 uses
		// the kernel default
		ConditionLimit float64 `yaml:"conditionLimit"`
	} `yaml:"engine"`

	// Hankel transform parameters. An empty method lets the driver choose
	// per depth group.
	Hankel struct {
		Method     string  `yaml:"method"`
		Filter     string  `yaml:"filter"`
		FilterFile string  `yaml:"filterFile,omitempty"`
		Variant    string  `yaml:"variant"`
		PtsPerDec  float64 `yaml:"ptsPerDec"`
		RTol       float64 `yaml:"rtol"`
		ATol       float64 `yaml:"atol"`
		NQuad      int     `yaml:"nquad"`
		MaxInt     int     `yaml:"maxint"`
		LambdaMin  float64 `yaml:"lambdaMin"`
		LambdaMax  float64 `yaml:"lambdaMax"`
		MaxDecades int     `yaml:"maxDecades"`
	} `yaml:"hankel"`

	// Fourier transform parameters for time-domain runs. An empty method
	// uses the lagged fine filter.
	Fourier struct {
		Method     string  `yaml:"method"`
		Filter     string  `yaml:"filter"`
		FilterFile string  `yaml:"filterFile,omitempty"`
		Variant    string  `yaml:"variant"`
		Trig       string  `yaml:"trig"`
		PtsPerDec  float64 `yaml:"ptsPerDec"`
		RTol       float64 `yaml:"rtol"`
		ATol       float64 `yaml:"atol"`
		NQuad      int     `yaml:"nquad"`
		MaxInt     int     `yaml:"maxint"`
		DiffQuad   float64 `yaml:"diffQuad"`
		DF         float64 `yaml:"df"`
		NFreq      int     `yaml:"nfreq"`
		NTot       int     `yaml:"ntot"`
		Q          float64 `yaml:"q"`

		// AddDec extends the FFTLog frequency range by two decade counts,
		// below and above
		AddDec []float64 `yaml:"addDec,omitempty"`

		// Frequencies replaces the frequencies the method needs; the
		// response is interpolated from them
		Frequencies []float64 `yaml:"frequencies,omitempty"`
	} `yaml:"fourier"`

	// Output parameters
	Output struct {
		// LogLevel is one of debug, info, warn or error
		LogLevel string `yaml:"logLevel"`

		// Format of response files: yaml or json
		Format string `yaml:"format"`

		// Summary adds magnitude statistics and decay fits to the output
		Summary bool `yaml:"summary"`
	} `yaml:"output"`

	// Server parameters
	Server struct {
		// Addr is the listen address of the HTTP API
		Addr string `yaml:"addr"`

		// MaxBodyBytes limits the size of a request
		MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Engine.Workers = runtime.NumCPU()
	cfg.Engine.MinOffset = forward.DefaultMinOffset
	cfg.Engine.BoundaryPolicy = "error"

	cfg.Hankel.Filter = filters.HankelFine
	cfg.Hankel.Variant = "standard"

	cfg.Fourier.Filter = filters.FourierFine
	cfg.Fourier.Variant = "lagged"

	cfg.Output.LogLevel = "info"
	cfg.Output.Format = "yaml"
	cfg.Output.Summary = true

	cfg.Server.Addr = ":8080"
	cfg.Server.MaxBodyBytes = 1 << 20

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// LogLevel parses Output.LogLevel
func (c *Config) LogLevel() (logrus.Level, error) {
	if c.Output.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.Output.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("error parsing log level: %w", err)
	}
	return lvl, nil
}

// loadFilter returns the named built-in filter, or the filter stored in file
func loadFilter(name, file string) (*filters.Filter, error) {
	if file != "" {
		return filters.Load(file)
	}
	return filters.Get(name)
}

// Options converts the configuration into driver options. The logger,
// observer and progress callback are left for the caller.
func (c *Config) Options() (forward.Options, error) {
	var opts forward.Options
	policy, err := layers.ParseBoundaryPolicy(c.Engine.BoundaryPolicy)
	if err != nil {
		return opts, err
	}
	opts.Workers = c.Engine.Workers
	opts.MinOffset = c.Engine.MinOffset
	opts.Policy = policy
	opts.DirectInKernel = c.Engine.DirectInKernel
	opts.ConditionLimit = c.Engine.ConditionLimit

	if c.Hankel.Method != "" {
		m, err := c.hankelMethod()
		if err != nil {
			return opts, err
		}
		opts.Hankel = &m
	}
	if c.Fourier.Method != "" {
		m, err := c.fourierMethod()
		if err != nil {
			return opts, err
		}
		opts.Fourier = &m
	}
	opts.FourierFrequencies = append([]float64(nil), c.Fourier.Frequencies...)
	return opts, nil
}

func (c *Config) hankelMethod() (hankel.Method, error) {
	h := c.Hankel
	kind, err := hankel.ParseKind(h.Method)
	if err != nil {
		return hankel.Method{}, err
	}
	m := hankel.Method{
		Kind:       kind,
		PtsPerDec:  h.PtsPerDec,
		RTol:       h.RTol,
		ATol:       h.ATol,
		NQuad:      h.NQuad,
		MaxInt:     h.MaxInt,
		LambdaMin:  h.LambdaMin,
		LambdaMax:  h.LambdaMax,
		MaxDecades: h.MaxDecades,
	}
	if kind == hankel.DLF {
		if m.Filter, err = loadFilter(h.Filter, h.FilterFile); err != nil {
			return hankel.Method{}, err
		}
		if m.Variant, err = hankel.ParseVariant(h.Variant); err != nil {
			return hankel.Method{}, err
		}
	}
	m = m.WithDefaults()
	return m, m.Validate()
}

func (c *Config) fourierMethod() (fourier.Method, error) {
	f := c.Fourier
	kind, err := fourier.ParseKind(f.Method)
	if err != nil {
		return fourier.Method{}, err
	}
	trig, err := fourier.ParseTrig(f.Trig)
	if err != nil {
		return fourier.Method{}, err
	}
	m := fourier.Method{
		Kind:      kind,
		Trig:      trig,
		PtsPerDec: f.PtsPerDec,
		RTol:      f.RTol,
		ATol:      f.ATol,
		NQuad:     f.NQuad,
		MaxInt:    f.MaxInt,
		DiffQuad:  f.DiffQuad,
		DF:        f.DF,
		NFreq:     f.NFreq,
		NTot:      f.NTot,
		Q:         f.Q,
	}
	switch len(f.AddDec) {
	case 0:
	case 2:
		m.AddDec = [2]float64{f.AddDec[0], f.AddDec[1]}
	default:
		return fourier.Method{}, emerror.Configf("fourier.addDec", "expected two values, got %d", len(f.AddDec))
	}
	if kind == fourier.DLF {
		if m.Filter, err = loadFilter(f.Filter, f.FilterFile); err != nil {
			return fourier.Method{}, err
		}
		if m.Variant, err = hankel.ParseVariant(f.Variant); err != nil {
			return fourier.Method{}, err
		}
	}
	m = m.WithDefaults()
	return m, m.Validate()
}

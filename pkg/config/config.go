// Package config loads dftdlabel settings from flags, environment variables
// (prefix DFTDLABEL_) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/psantana5/dftd-labeler/pkg/dispersion"
	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
	"github.com/psantana5/dftd-labeler/pkg/progress"
	"github.com/psantana5/dftd-labeler/pkg/tracing"
)

// EnvPrefix is prepended to every environment variable, e.g. DFTDLABEL_PROGRESS_DIR
const EnvPrefix = "DFTDLABEL"

// Config is the complete tool configuration
type Config struct {
	Input      string         `mapstructure:"input" yaml:"input" json:"input"`
	Output     string         `mapstructure:"output" yaml:"output" json:"output"`
	Method     string         `mapstructure:"method" yaml:"method" json:"method"`
	Dispersion string         `mapstructure:"dispersion" yaml:"dispersion" json:"dispersion"`
	Progress   ProgressConfig `mapstructure:"progress" yaml:"progress" json:"progress"`
	Provider   ProviderConfig `mapstructure:"provider" yaml:"provider" json:"provider"`
	Log        LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Metrics    MetricsConfig  `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing    TracingConfig  `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
}

type ProgressConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
	DSN     string `mapstructure:"dsn" yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

type ProviderConfig struct {
	D3Binary string        `mapstructure:"d3_binary" yaml:"d3_binary" json:"d3_binary"`
	D4Binary string        `mapstructure:"d4_binary" yaml:"d4_binary" json:"d4_binary"`
	WorkDir  string        `mapstructure:"workdir" yaml:"workdir" json:"workdir"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json" json:"json"`
	Dir   string `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
}

type MetricsConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty" json:"addr,omitempty"`
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
}

// SetDefaults registers every key with its default value. Keys without a
// default are registered too so AutomaticEnv can populate them on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("method", models.DefaultMethod)
	v.SetDefault("dispersion", "")
	v.SetDefault("progress.backend", "file")
	v.SetDefault("progress.dir", ".")
	v.SetDefault("progress.dsn", "")
	v.SetDefault("provider.d3_binary", dispersion.DefaultD3Binary)
	v.SetDefault("provider.d4_binary", dispersion.DefaultD4Binary)
	v.SetDefault("provider.workdir", "")
	v.SetDefault("provider.timeout", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.dir", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
}

// New returns a viper instance with defaults and environment binding.
// cfgFile overrides the default search of $HOME/.dftdlabel/config.yaml.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", models.ErrConfig, cfgFile, err)
		}
		return v, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".dftdlabel"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", models.ErrConfig, err)
		}
	}
	return v, nil
}

// Load decodes the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	return &c, nil
}

// Scheme parses the dispersion selection
func (c *Config) Scheme() (models.Scheme, error) {
	if strings.TrimSpace(c.Dispersion) == "" {
		return 0, fmt.Errorf("%w: dispersion scheme is required (choose from 3, 4)", models.ErrConfig)
	}
	return models.ParseScheme(c.Dispersion)
}

// Job builds the labelling job described by the configuration
func (c *Config) Job() (models.Job, error) {
	scheme, err := c.Scheme()
	if err != nil {
		return models.Job{}, err
	}
	job := models.Job{InputPath: c.Input, OutputPath: c.Output, Method: c.Method, Scheme: scheme}
	if err := job.Validate(); err != nil {
		return models.Job{}, err
	}
	return job, nil
}

// Validate checks settings shared by every command
func (c *Config) Validate() error {
	switch c.Progress.Backend {
	case "file", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown progress backend %q (choose from file, sqlite, postgres)", models.ErrConfig, c.Progress.Backend)
	}
	if c.Progress.Backend == "postgres" && c.Progress.DSN == "" {
		return fmt.Errorf("%w: progress.dsn is required for the postgres backend", models.ErrConfig)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("%w: provider.timeout must not be negative", models.ErrConfig)
	}
	return nil
}

// ProgressStore returns the progress backend configuration
func (c *Config) ProgressStore() progress.Config {
	return progress.Config{Type: c.Progress.Backend, Dir: c.Progress.Dir, DSN: c.Progress.DSN}
}

// ProviderOptions returns dispersion provider options for the configured method
func (c *Config) ProviderOptions(env []string, logger *logging.Logger) dispersion.Options {
	return dispersion.Options{
		Method:   c.Method,
		D3Binary: c.Provider.D3Binary,
		D4Binary: c.Provider.D4Binary,
		WorkDir:  c.Provider.WorkDir,
		Timeout:  c.Provider.Timeout,
		Env:      env,
		Logger:   logger,
	}
}

// TracingConfig returns the tracing configuration
func (c *Config) TracingConfig(version string) tracing.Config {
	return tracing.Config{Enabled: c.Tracing.Enabled, OTLPEndpoint: c.Tracing.Endpoint, ServiceVersion: version}
}

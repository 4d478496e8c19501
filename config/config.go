/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package config loads and validates fnforge configuration.
//
// Configuration follows the usual precedence: CLI flags > environment
// variables (FNFORGE_*) > config file > defaults. Validation is fail-fast
// and runs before any remote call is made.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the top-level fnforge configuration.
type Config struct {
	AWS     AWSConfig    `mapstructure:"aws"`
	Deploy  DeployConfig `mapstructure:"deploy"`
	Log     LogConfig    `mapstructure:"log"`
	Targets []Target     `mapstructure:"targets"`
}

// AWSConfig holds AWS account and credential configuration.
type AWSConfig struct {
	AccountID       string `mapstructure:"account_id"`
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// DeployConfig holds pipeline tuning knobs.
type DeployConfig struct {
	PollIntervalSec int `mapstructure:"polling_interval_sec"`
	TimeoutMin      int `mapstructure:"timeout_min"`
	Concurrency     int `mapstructure:"concurrency"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Target describes one function deployment: the image to build and the
// function it feeds.
type Target struct {
	FunctionName string            `mapstructure:"function_name"`
	Repository   string            `mapstructure:"repository"`
	SourceDir    string            `mapstructure:"source_dir"`
	Platform     string            `mapstructure:"platform"`
	BuildArgs    map[string]string `mapstructure:"build_args"`

	// UseImageTag selects tag-addressed deployment. The default is false:
	// digest-addressed references are immutable, so redeploying unchanged
	// source converges to unchanged function state.
	UseImageTag bool   `mapstructure:"use_image_tag"`
	ImageTag    string `mapstructure:"image_tag"`

	// Role is the execution role ARN, required only when the function does
	// not exist yet. Updates never touch the live function's role.
	Role        string `mapstructure:"role"`
	Description string `mapstructure:"description"`
}

// Defaults mirroring the variables of the original deployment description.
const (
	DefaultFunctionName = "terraform-lambda-function"
	DefaultRepository   = "terraform-lambda-repo"
	DefaultPlatform     = "linux/amd64"
	DefaultImageTag     = "latest"

	DefaultPollIntervalSec = 3
	DefaultTimeoutMin      = 5
	DefaultConcurrency     = 2
)

// newConfigViper creates a viper instance wired to fnforge's config file
// conventions: "config.yaml" searched in ~/.fnforge, the XDG config dir,
// and the current directory, with FNFORGE_* environment overrides.
func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".fnforge"))
		v.AddConfigPath(filepath.Join(home, ".config", "fnforge"))
	}
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("FNFORGE")
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("deploy.polling_interval_sec", DefaultPollIntervalSec)
	v.SetDefault("deploy.timeout_min", DefaultTimeoutMin)
	v.SetDefault("deploy.concurrency", DefaultConcurrency)
}

// Load reads the configuration from the standard search paths. A missing
// config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := newConfigViper()
	_ = v.ReadInConfig()
	return unmarshal(v)
}

// LoadFromPath reads the configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	v := newConfigViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: "config", Message: err.Error()}
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "config", Message: err.Error()}
	}
	cfg.applyTargetDefaults()
	return &cfg, nil
}

// applyTargetDefaults fills per-target zero values. A config with no
// targets gets the single default target.
func (c *Config) applyTargetDefaults() {
	if len(c.Targets) == 0 {
		c.Targets = []Target{{}}
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.FunctionName == "" {
			t.FunctionName = DefaultFunctionName
		}
		if t.Repository == "" {
			t.Repository = DefaultRepository
		}
		if t.SourceDir == "" {
			t.SourceDir = "."
		}
		if t.Platform == "" {
			t.Platform = DefaultPlatform
		}
		if t.UseImageTag && t.ImageTag == "" {
			t.ImageTag = DefaultImageTag
		}
	}
}

// PollInterval and Timeout accessors keep time math out of callers.

func (d DeployConfig) PollIntervalOrDefault() int {
	if d.PollIntervalSec <= 0 {
		return DefaultPollIntervalSec
	}
	return d.PollIntervalSec
}

func (d DeployConfig) TimeoutMinOrDefault() int {
	if d.TimeoutMin <= 0 {
		return DefaultTimeoutMin
	}
	return d.TimeoutMin
}

func (d DeployConfig) ConcurrencyOrDefault() int {
	if d.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return d.Concurrency
}

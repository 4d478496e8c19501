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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fnforge/fnforge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg *config.Config)
		wantErr bool
	}{
		{
			name: "full config",
			yaml: `
aws:
  account_id: "123456789012"
  region: us-east-1
  profile: deploy
deploy:
  polling_interval_sec: 5
  timeout_min: 10
  concurrency: 3
log:
  level: debug
  format: json
targets:
  - function_name: health-checker
    repository: services/health-checker
    source_dir: ./app
    use_image_tag: true
    image_tag: v1.2.3
    build_args:
      COMMIT: abc123
`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "123456789012", cfg.AWS.AccountID)
				assert.Equal(t, "us-east-1", cfg.AWS.Region)
				assert.Equal(t, "deploy", cfg.AWS.Profile)
				assert.Equal(t, 5, cfg.Deploy.PollIntervalSec)
				assert.Equal(t, 10, cfg.Deploy.TimeoutMin)
				assert.Equal(t, 3, cfg.Deploy.Concurrency)
				assert.Equal(t, "debug", cfg.Log.Level)
				require.Len(t, cfg.Targets, 1)
				tgt := cfg.Targets[0]
				assert.Equal(t, "health-checker", tgt.FunctionName)
				assert.Equal(t, "services/health-checker", tgt.Repository)
				assert.Equal(t, "./app", tgt.SourceDir)
				assert.True(t, tgt.UseImageTag)
				assert.Equal(t, "v1.2.3", tgt.ImageTag)
				assert.Equal(t, "abc123", tgt.BuildArgs["COMMIT"])
				assert.Equal(t, config.DefaultPlatform, tgt.Platform)
			},
		},
		{
			name: "defaults fill empty targets",
			yaml: `
aws:
  account_id: "123456789012"
  region: eu-west-1
`,
			check: func(t *testing.T, cfg *config.Config) {
				require.Len(t, cfg.Targets, 1)
				tgt := cfg.Targets[0]
				assert.Equal(t, config.DefaultFunctionName, tgt.FunctionName)
				assert.Equal(t, config.DefaultRepository, tgt.Repository)
				assert.Equal(t, ".", tgt.SourceDir)
				assert.Equal(t, config.DefaultPlatform, tgt.Platform)
				assert.False(t, tgt.UseImageTag)
				assert.Empty(t, tgt.ImageTag)
				assert.Equal(t, config.DefaultPollIntervalSec, cfg.Deploy.PollIntervalSec)
				assert.Equal(t, config.DefaultTimeoutMin, cfg.Deploy.TimeoutMin)
				assert.Equal(t, config.DefaultConcurrency, cfg.Deploy.Concurrency)
			},
		},
		{
			name: "tag addressing gets a default tag",
			yaml: `
aws:
  account_id: "123456789012"
  region: us-west-2
targets:
  - use_image_tag: true
`,
			check: func(t *testing.T, cfg *config.Config) {
				require.Len(t, cfg.Targets, 1)
				assert.Equal(t, config.DefaultImageTag, cfg.Targets[0].ImageTag)
			},
		},
		{
			name:    "malformed yaml",
			yaml:    "aws: [not a map",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			cfg, err := config.LoadFromPath(path)
			if tc.wantErr {
				require.Error(t, err)
				var cfgErr *config.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDeployConfigAccessors(t *testing.T) {
	t.Parallel()

	var zero config.DeployConfig
	assert.Equal(t, config.DefaultPollIntervalSec, zero.PollIntervalOrDefault())
	assert.Equal(t, config.DefaultTimeoutMin, zero.TimeoutMinOrDefault())
	assert.Equal(t, config.DefaultConcurrency, zero.ConcurrencyOrDefault())

	set := config.DeployConfig{PollIntervalSec: 7, TimeoutMin: 2, Concurrency: 9}
	assert.Equal(t, 7, set.PollIntervalOrDefault())
	assert.Equal(t, 2, set.TimeoutMinOrDefault())
	assert.Equal(t, 9, set.ConcurrencyOrDefault())
}

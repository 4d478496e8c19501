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
	"strings"
	"testing"

	"github.com/fnforge/fnforge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *config.Config {
	return &config.Config{
		AWS: config.AWSConfig{
			AccountID: "123456789012",
			Region:    "us-east-1",
		},
		Targets: []config.Target{
			{
				FunctionName: "terraform-lambda-function",
				Repository:   "terraform-lambda-repo",
				SourceDir:    ".",
				Platform:     "linux/amd64",
			},
		},
	}
}

func TestValidateSyntaxOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(c *config.Config)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(c *config.Config) {},
		},
		{
			name:      "missing region",
			mutate:    func(c *config.Config) { c.AWS.Region = "" },
			wantField: "aws.region",
		},
		{
			name:      "missing account",
			mutate:    func(c *config.Config) { c.AWS.AccountID = "" },
			wantField: "aws.account_id",
		},
		{
			name:      "short account",
			mutate:    func(c *config.Config) { c.AWS.AccountID = "1234" },
			wantField: "aws.account_id",
		},
		{
			name:      "account with letters",
			mutate:    func(c *config.Config) { c.AWS.AccountID = "12345678901a" },
			wantField: "aws.account_id",
		},
		{
			name:      "no targets",
			mutate:    func(c *config.Config) { c.Targets = nil },
			wantField: "targets",
		},
		{
			name:      "uppercase repository",
			mutate:    func(c *config.Config) { c.Targets[0].Repository = "Bad-Repo" },
			wantField: "targets[0].repository",
		},
		{
			name:      "repository with spaces",
			mutate:    func(c *config.Config) { c.Targets[0].Repository = "my repo" },
			wantField: "targets[0].repository",
		},
		{
			name:   "repository with separators",
			mutate: func(c *config.Config) { c.Targets[0].Repository = "team/service_api-v2" },
		},
		{
			name:      "empty function name",
			mutate:    func(c *config.Config) { c.Targets[0].FunctionName = "" },
			wantField: "targets[0].function_name",
		},
		{
			name: "overlong function name",
			mutate: func(c *config.Config) {
				c.Targets[0].FunctionName = strings.Repeat("x", 65)
			},
			wantField: "targets[0].function_name",
		},
		{
			name: "explicit tag with digest addressing",
			mutate: func(c *config.Config) {
				c.Targets[0].ImageTag = "v1"
				c.Targets[0].UseImageTag = false
			},
			wantField: "targets[0].image_tag",
		},
		{
			name: "explicit tag with tag addressing",
			mutate: func(c *config.Config) {
				c.Targets[0].ImageTag = "v1"
				c.Targets[0].UseImageTag = true
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.ValidateWithOptions(config.ValidationOptions{SyntaxOnly: true})
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *config.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.wantField, cfgErr.Field)
		})
	}
}

func TestValidateSourceDir(t *testing.T) {
	t.Parallel()

	t.Run("missing dir", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.Targets[0].SourceDir = filepath.Join(t.TempDir(), "missing")

		var cfgErr *config.ConfigError
		require.ErrorAs(t, cfg.Validate(), &cfgErr)
		assert.Equal(t, "targets[0].source_dir", cfgErr.Field)
	})

	t.Run("dir without Dockerfile", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.Targets[0].SourceDir = t.TempDir()

		var cfgErr *config.ConfigError
		require.ErrorAs(t, cfg.Validate(), &cfgErr)
		assert.Contains(t, cfgErr.Message, "Dockerfile")
	})

	t.Run("dir with Dockerfile", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

		cfg := validConfig()
		cfg.Targets[0].SourceDir = dir
		assert.NoError(t, cfg.Validate())
	})
}

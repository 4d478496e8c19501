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

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnforge/fnforge/config"
	"github.com/fnforge/fnforge/deploy"
	"github.com/fnforge/fnforge/publish"
)

func newDeployCmdForTest(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "deploy", RunE: func(cmd *cobra.Command, args []string) error { return nil }}
	registerDeployFlags(cmd)
	cmd.SetContext(context.Background())
	cmd.SetArgs(args)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func baseConfig() *config.Config {
	cfg := &config.Config{
		AWS: config.AWSConfig{AccountID: "123456789012", Region: "us-east-1"},
	}
	cfg.Targets = []config.Target{{
		FunctionName: config.DefaultFunctionName,
		Repository:   config.DefaultRepository,
		SourceDir:    ".",
		Platform:     config.DefaultPlatform,
	}}
	return cfg
}

func TestApplyDeployFlags(t *testing.T) {
	t.Parallel()

	cmd := newDeployCmdForTest(t,
		"--function", "health-checker",
		"--repository", "services/health",
		"--source-dir", "/srv/app",
		"--account", "210987654321",
		"--region", "eu-west-1",
		"--role", "arn:aws:iam::210987654321:role/exec",
		"--use-image-tag",
		"--build-arg", "COMMIT=abc123",
		"--concurrency", "4",
	)

	cfg := baseConfig()
	applyDeployFlags(cmd, cfg)

	target := cfg.Targets[0]
	assert.Equal(t, "health-checker", target.FunctionName)
	assert.Equal(t, "services/health", target.Repository)
	assert.Equal(t, "/srv/app", target.SourceDir)
	assert.Equal(t, "arn:aws:iam::210987654321:role/exec", target.Role)
	assert.True(t, target.UseImageTag)
	assert.Equal(t, config.DefaultImageTag, target.ImageTag, "enabling tag addressing without a tag uses the default")
	assert.Equal(t, "abc123", target.BuildArgs["COMMIT"])

	assert.Equal(t, "210987654321", cfg.AWS.AccountID)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, 4, cfg.Deploy.Concurrency)
}

func TestApplyDeployFlagsNoFlagsKeepsConfig(t *testing.T) {
	t.Parallel()

	cmd := newDeployCmdForTest(t)
	cfg := baseConfig()
	applyDeployFlags(cmd, cfg)

	assert.Equal(t, config.DefaultFunctionName, cfg.Targets[0].FunctionName)
	assert.Equal(t, config.DefaultRepository, cfg.Targets[0].Repository)
	assert.False(t, cfg.Targets[0].UseImageTag)
	assert.Empty(t, cfg.Targets[0].ImageTag)
}

func TestReportResultsExitCodes(t *testing.T) {
	t.Parallel()

	published := &publish.PublishedImage{
		Repository: "123456789012.dkr.ecr.us-east-1.amazonaws.com/terraform-lambda-repo",
		Digest:     digest.Digest("sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
	}

	tests := []struct {
		name     string
		results  []deploy.Result
		wantCode int
	}{
		{
			name:     "all succeeded",
			results:  []deploy.Result{{FunctionName: "a", Outcome: deploy.Succeeded, Published: published}},
			wantCode: 0,
		},
		{
			name: "one failed",
			results: []deploy.Result{
				{FunctionName: "a", Outcome: deploy.Succeeded, Published: published},
				{FunctionName: "b", Outcome: deploy.Failed, Stage: deploy.StagePublish, Err: fmt.Errorf("push failed")},
			},
			wantCode: 1,
		},
		{
			name: "cancelled dominates",
			results: []deploy.Result{
				{FunctionName: "a", Outcome: deploy.Failed, Stage: deploy.StageBuild, Err: fmt.Errorf("build failed")},
				{FunctionName: "b", Outcome: deploy.Cancelled, Stage: deploy.StagePublish, Err: context.Canceled},
			},
			wantCode: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd := newDeployCmdForTest(t)
			err := reportResults(cmd, tc.results)

			if tc.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			var exit *exitError
			require.True(t, errors.As(err, &exit))
			assert.Equal(t, tc.wantCode, exit.code)
		})
	}
}

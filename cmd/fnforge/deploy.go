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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fnforge/fnforge/builder"
	"github.com/fnforge/fnforge/config"
	"github.com/fnforge/fnforge/deploy"
	"github.com/fnforge/fnforge/function"
	"github.com/fnforge/fnforge/logging"
	"github.com/fnforge/fnforge/publish"
	"github.com/fnforge/fnforge/registry"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build, publish, and deploy the configured functions",
	Long: `Deploy runs the full pipeline for every configured target: build the
image from its source directory, ensure the ECR repository exists, push
the image, and create or update the Lambda function.

Exit codes: 0 on success, 1 on failure, 2 when cancelled.`,
	RunE: runDeploy,
}

func init() {
	registerDeployFlags(deployCmd)
}

func registerDeployFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("function", "", "Lambda function name (overrides the first configured target)")
	flags.String("repository", "", "ECR repository name")
	flags.String("source-dir", "", "Directory containing the Dockerfile and build context")
	flags.String("account", "", "AWS account ID")
	flags.String("region", "", "AWS region")
	flags.String("profile", "", "AWS shared config profile")
	flags.String("role", "", "Execution role ARN, required when the function does not exist yet")
	flags.String("image-tag", "", "Image tag (requires --use-image-tag)")
	flags.Bool("use-image-tag", false, "Address the function image by tag instead of digest")
	flags.StringToString("build-arg", nil, "Build args passed to the image build (key=value)")
	flags.Int("concurrency", 0, "Maximum pipelines running at once")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := configFromContext(cmd)
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}
	applyDeployFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	clients, err := deploy.NewAWSClients(ctx, deploy.ClientConfig{
		Region:          cfg.AWS.Region,
		Profile:         cfg.AWS.Profile,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
	})
	if err != nil {
		return err
	}

	engine, err := builder.NewEngineClient()
	if err != nil {
		return err
	}
	imageBuilder := &builder.DockerBuilder{Client: engine}
	publisher := publish.NewPublisher(engine)

	deployer := function.NewDeployer(clients.Lambda)
	deployer.PollInterval = time.Duration(cfg.Deploy.PollIntervalOrDefault()) * time.Second
	deployer.Timeout = time.Duration(cfg.Deploy.TimeoutMinOrDefault()) * time.Minute

	pipelines := make([]*deploy.Pipeline, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		pipelines = append(pipelines, &deploy.Pipeline{
			Builder: imageBuilder,
			Registry: registry.NewManager(clients.ECR, registry.Target{
				AccountID:  cfg.AWS.AccountID,
				Region:     cfg.AWS.Region,
				Repository: target.Repository,
			}),
			Publisher: publisher,
			Deployer:  deployer,
			Target:    target,
		})
	}

	results := deploy.RunAll(ctx, pipelines, cfg.Deploy.ConcurrencyOrDefault())
	return reportResults(cmd, results)
}

// applyDeployFlags overlays explicitly set flags onto the first
// configured target and the AWS section.
func applyDeployFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	target := &cfg.Targets[0]

	if s, _ := flags.GetString("function"); s != "" {
		target.FunctionName = s
	}
	if s, _ := flags.GetString("repository"); s != "" {
		target.Repository = s
	}
	if s, _ := flags.GetString("source-dir"); s != "" {
		target.SourceDir = s
	}
	if s, _ := flags.GetString("role"); s != "" {
		target.Role = s
	}
	if s, _ := flags.GetString("image-tag"); s != "" {
		target.ImageTag = s
	}
	if flags.Changed("use-image-tag") {
		target.UseImageTag, _ = flags.GetBool("use-image-tag")
		if target.UseImageTag && target.ImageTag == "" {
			target.ImageTag = config.DefaultImageTag
		}
	}
	if m, _ := flags.GetStringToString("build-arg"); len(m) > 0 {
		if target.BuildArgs == nil {
			target.BuildArgs = map[string]string{}
		}
		for k, v := range m {
			target.BuildArgs[k] = v
		}
	}

	if s, _ := flags.GetString("account"); s != "" {
		cfg.AWS.AccountID = s
	}
	if s, _ := flags.GetString("region"); s != "" {
		cfg.AWS.Region = s
	}
	if s, _ := flags.GetString("profile"); s != "" {
		cfg.AWS.Profile = s
	}
	if n, _ := flags.GetInt("concurrency"); n > 0 {
		cfg.Deploy.Concurrency = n
	}
}

// reportResults logs every pipeline outcome and converts the worst one
// into the process exit code.
func reportResults(cmd *cobra.Command, results []deploy.Result) error {
	ctx := cmd.Context()
	worst := deploy.Succeeded

	for _, res := range results {
		switch res.Outcome {
		case deploy.Succeeded:
			if res.PublishSkipped {
				logging.InfoContext(ctx, "%s: deployed (image unchanged, publish skipped) -> %s", res.FunctionName, res.Published.URI())
			} else {
				logging.InfoContext(ctx, "%s: deployed -> %s", res.FunctionName, res.Published.URI())
			}
		case deploy.Cancelled:
			logging.WarnContext(ctx, "%s: cancelled before the %s stage", res.FunctionName, res.Stage)
		default:
			logging.ErrorContext(ctx, "%s: %v", res.FunctionName, res.Err)
		}

		if res.Outcome.ExitCode() > worst.ExitCode() {
			worst = res.Outcome
		}
	}

	if worst != deploy.Succeeded {
		return &exitError{
			code: worst.ExitCode(),
			msg:  fmt.Sprintf("deploy %s", worst),
		}
	}
	return nil
}

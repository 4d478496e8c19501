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

package deploy

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fnforge/fnforge/builder"
	"github.com/fnforge/fnforge/config"
	"github.com/fnforge/fnforge/function"
	"github.com/fnforge/fnforge/logging"
	"github.com/fnforge/fnforge/publish"
	"github.com/fnforge/fnforge/registry"
)

// RegistryManager resolves the repository and credentials for one
// registry target.
type RegistryManager interface {
	EnsureRepository(ctx context.Context) (registry.RepositoryHandle, error)
	Authenticate(ctx context.Context) (registry.Credentials, error)
	Invalidate()
}

// ImagePublisher pushes a built image. One attempt per call.
type ImagePublisher interface {
	Publish(ctx context.Context, img builder.ImageRef, repo registry.RepositoryHandle, creds registry.Credentials, tag string) (publish.PublishedImage, error)
}

// FunctionDeployer converges a function to a spec.
type FunctionDeployer interface {
	Deploy(ctx context.Context, spec function.Spec) (function.Deployment, error)
}

// Pipeline runs the four stages for one target in strict order:
// build, registry, publish, deploy. Cancellation is honored between
// stages; a stage that already started runs to completion.
type Pipeline struct {
	Builder   builder.ImageBuilder
	Registry  RegistryManager
	Publisher ImagePublisher
	Deployer  FunctionDeployer
	Target    config.Target
}

// Run executes the pipeline. The returned Result is always populated;
// callers inspect Outcome rather than a returned error.
func (p *Pipeline) Run(ctx context.Context) Result {
	res := Result{FunctionName: p.Target.FunctionName, Outcome: Succeeded}

	if cancelled(ctx) {
		return p.cancel(ctx, res, StageBuild)
	}

	img, err := p.Builder.Build(ctx, builder.BuildSpec{
		Name:      fmt.Sprintf("%s:build", p.Target.Repository),
		SourceDir: p.Target.SourceDir,
		BuildArgs: p.Target.BuildArgs,
		Platform:  p.Target.Platform,
	})
	if err != nil {
		return p.fail(res, StageBuild, err)
	}
	res.Image = &img

	if cancelled(ctx) {
		return p.cancel(ctx, res, StageRegistry)
	}

	repo, err := p.Registry.EnsureRepository(ctx)
	if err != nil {
		return p.fail(res, StageRegistry, err)
	}

	creds, err := p.Registry.Authenticate(ctx)
	if err != nil {
		return p.fail(res, StageRegistry, err)
	}

	if cancelled(ctx) {
		return p.cancel(ctx, res, StagePublish)
	}

	state, err := LoadState(p.Target.SourceDir)
	if err != nil {
		logging.WarnContext(ctx, "Ignoring unreadable state file: %v", err)
		state = &State{}
	}

	if published, ok := p.reusable(ctx, state, img); ok {
		res.Published = published
		res.PublishSkipped = true
	} else {
		published, err := p.publishWithRetry(ctx, img, repo, creds)
		if err != nil {
			return p.fail(res, StagePublish, err)
		}
		res.Published = &published

		p.record(ctx, state, img, published)
	}

	if cancelled(ctx) {
		return p.cancel(ctx, res, StageDeploy)
	}

	dep, err := p.Deployer.Deploy(ctx, function.Spec{
		Name:        p.Target.FunctionName,
		ImageURI:    res.Published.URI(),
		Role:        p.Target.Role,
		Description: p.Target.Description,
	})
	if err != nil {
		return p.fail(res, StageDeploy, err)
	}
	res.Function = &dep

	logging.InfoContext(ctx, "Function %s now runs %s", dep.ARN, res.Published.URI())
	return res
}

// publishWithRetry performs the publish with exactly one
// re-authentication retry when the registry rejects the credentials.
func (p *Pipeline) publishWithRetry(ctx context.Context, img builder.ImageRef, repo registry.RepositoryHandle, creds registry.Credentials) (publish.PublishedImage, error) {
	tag := ""
	if p.Target.UseImageTag {
		tag = p.Target.ImageTag
	}

	published, err := p.Publisher.Publish(ctx, img, repo, creds, tag)
	if err == nil {
		return published, nil
	}

	var authErr *registry.AuthError
	if !errors.As(err, &authErr) {
		return publish.PublishedImage{}, err
	}

	logging.WarnContext(ctx, "Registry rejected credentials, re-authenticating once")
	p.Registry.Invalidate()

	fresh, err := p.Registry.Authenticate(ctx)
	if err != nil {
		return publish.PublishedImage{}, err
	}

	return p.Publisher.Publish(ctx, img, repo, fresh, tag)
}

// reusable reports whether the recorded publish for this repository
// matches the current build, in which case pushing again would be a
// no-op. Tag-addressed deploys always push: the tag may have been
// moved by someone else.
func (p *Pipeline) reusable(ctx context.Context, state *State, img builder.ImageRef) (*publish.PublishedImage, bool) {
	if p.Target.UseImageTag {
		return nil, false
	}

	entry, ok := state.Recorded(p.Target.Repository)
	if !ok || entry.BuildDigest != img.Digest.String() {
		return nil, false
	}

	published, err := publish.Parse(entry.PublishedURI)
	if err != nil {
		logging.WarnContext(ctx, "Ignoring unparseable recorded image %q: %v", entry.PublishedURI, err)
		return nil, false
	}

	logging.InfoContext(ctx, "Build unchanged since last publish, reusing %s", entry.PublishedURI)
	return &published, true
}

// record persists the published build. Failure to write the state file
// never fails the pipeline; the next run just pushes again.
func (p *Pipeline) record(ctx context.Context, state *State, img builder.ImageRef, published publish.PublishedImage) {
	state.Record(p.Target.Repository, StateEntry{
		BuildDigest:  img.Digest.String(),
		PublishedURI: published.URI(),
		PublishedAt:  nowFunc(),
	})
	if err := state.Save(p.Target.SourceDir); err != nil {
		logging.WarnContext(ctx, "Failed to record published image: %v", err)
	}
}

func (p *Pipeline) fail(res Result, stage Stage, err error) Result {
	res.Outcome = Failed
	res.Stage = stage
	res.Err = &StageError{Stage: stage, Err: err}
	return res
}

func (p *Pipeline) cancel(ctx context.Context, res Result, next Stage) Result {
	res.Outcome = Cancelled
	res.Stage = next
	res.Err = &StageError{Stage: next, Err: ctx.Err()}
	return res
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// RunAll executes pipelines with bounded concurrency and returns one
// result per pipeline, in order. A failed pipeline never stops its
// siblings.
func RunAll(ctx context.Context, pipelines []*Pipeline, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}

	results := make([]Result, len(pipelines))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, p := range pipelines {
		g.Go(func() error {
			results[i] = p.Run(ctx)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

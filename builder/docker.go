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

package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	dockerClient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/opencontainers/go-digest"

	"github.com/fnforge/fnforge/errors"
	"github.com/fnforge/fnforge/logging"
)

// DockerAPI is the subset of the Docker Engine API the builder uses.
//
// **Methods:**
//
// ImageBuild: Builds an image from a tar build context.
// ImageInspectWithRaw: Inspects a built image by ID or name.
type DockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
}

// DockerBuilder builds images through a Docker engine.
//
// **Attributes:**
//
// Client: Docker Engine API subset used for builds.
type DockerBuilder struct {
	Client DockerAPI
}

// NewEngineClient connects to the engine described by the environment
// (DOCKER_HOST and friends). The returned client also serves the
// publish stage, which needs tag and push on top of build.
func NewEngineClient() (*dockerClient.Client, error) {
	cli, err := dockerClient.NewClientWithOpts(dockerClient.FromEnv, dockerClient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap("create Docker client", "", err)
	}
	return cli, nil
}

// Build runs a single image build and returns a reference to the
// resulting local image. The build context is the entire source
// directory; the Dockerfile must sit at its root.
func (b *DockerBuilder) Build(ctx context.Context, spec BuildSpec) (ImageRef, error) {
	if spec.Name == "" {
		return ImageRef{}, &BuildError{Spec: spec, Err: fmt.Errorf("image name must not be empty")}
	}
	if spec.SourceDir == "" {
		return ImageRef{}, &BuildError{Spec: spec, Err: fmt.Errorf("source directory must not be empty")}
	}

	logging.InfoContext(ctx, "Building image %s from %s", spec.Name, spec.SourceDir)

	buildContext, err := archive.TarWithOptions(spec.SourceDir, &archive.TarOptions{})
	if err != nil {
		return ImageRef{}, &BuildError{Spec: spec, Err: errors.Wrap("create build context", spec.SourceDir, err)}
	}
	defer buildContext.Close()

	buildArgs := make(map[string]*string, len(spec.BuildArgs))
	for k := range spec.BuildArgs {
		v := spec.BuildArgs[k]
		buildArgs[k] = &v
	}

	resp, err := b.Client.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{spec.Name},
		Dockerfile: "Dockerfile",
		BuildArgs:  buildArgs,
		Platform:   spec.Platform,
		Remove:     true,
	})
	if err != nil {
		return ImageRef{}, &BuildError{Spec: spec, Err: err}
	}
	defer resp.Body.Close()

	if err := drainBuildStream(ctx, resp.Body); err != nil {
		return ImageRef{}, &BuildError{Spec: spec, Err: err}
	}

	inspect, _, err := b.Client.ImageInspectWithRaw(ctx, spec.Name)
	if err != nil {
		return ImageRef{}, &BuildError{Spec: spec, Err: errors.Wrap("inspect built image", spec.Name, err)}
	}

	dgst, err := imageDigest(inspect)
	if err != nil {
		return ImageRef{}, &BuildError{Spec: spec, Err: err}
	}

	logging.DebugContext(ctx, "Built image %s (%s)", inspect.ID, dgst)

	return ImageRef{LocalID: inspect.ID, Digest: dgst}, nil
}

// buildStreamMessage is one JSON line of the engine's build output.
type buildStreamMessage struct {
	Stream      string `json:"stream"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Error string `json:"error"`
}

// drainBuildStream consumes the engine's progress stream, surfacing
// step output at debug level. The stream must be read to completion or
// the build is aborted engine-side.
func drainBuildStream(ctx context.Context, r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg buildStreamMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap("decode build output", "", err)
		}
		if msg.ErrorDetail != nil {
			return fmt.Errorf("build failed: %s", msg.ErrorDetail.Message)
		}
		if msg.Error != "" {
			return fmt.Errorf("build failed: %s", msg.Error)
		}
		if line := strings.TrimSpace(msg.Stream); line != "" {
			logging.DebugContext(ctx, "%s", line)
		}
	}
}

// imageDigest derives the content digest of a built image. The engine
// image ID is the sha256 digest of the image configuration, so
// identical inputs produce identical digests.
func imageDigest(inspect types.ImageInspect) (digest.Digest, error) {
	dgst, err := digest.Parse(inspect.ID)
	if err != nil {
		return "", errors.Wrap("parse image digest", inspect.ID, err)
	}
	return dgst, nil
}

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

// Package builder turns a source directory into a locally stored
// container image through the Docker Engine API.
package builder

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// BuildSpec describes one image build.
//
// **Attributes:**
//
// Name: Local name for the built image.
// SourceDir: Directory holding the Dockerfile and build context.
// BuildArgs: Values passed through to the Dockerfile ARG instructions.
// Platform: Target platform, for example linux/amd64.
type BuildSpec struct {
	Name      string
	SourceDir string
	BuildArgs map[string]string
	Platform  string
}

// ImageRef identifies a locally built image.
//
// **Attributes:**
//
// LocalID: Engine-local image ID.
// Digest: Content digest of the image configuration. Identical source
// and build inputs yield the same digest.
type ImageRef struct {
	LocalID string
	Digest  digest.Digest
}

// ImageBuilder builds container images.
type ImageBuilder interface {
	Build(ctx context.Context, spec BuildSpec) (ImageRef, error)
}

// BuildError reports a failed image build.
type BuildError struct {
	Spec BuildSpec
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build image %s from %s: %v", e.Spec.Name, e.Spec.SourceDir, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

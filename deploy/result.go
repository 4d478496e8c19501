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

// Package deploy sequences build, registry, publish, and function
// stages into one idempotent pipeline run.
package deploy

import (
	"fmt"

	"github.com/fnforge/fnforge/builder"
	"github.com/fnforge/fnforge/function"
	"github.com/fnforge/fnforge/publish"
)

// Stage names one pipeline stage.
type Stage string

const (
	StageBuild    Stage = "build"
	StageRegistry Stage = "registry"
	StagePublish  Stage = "publish"
	StageDeploy   Stage = "deploy"
)

// Outcome classifies how a pipeline run ended.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ExitCode maps the outcome to the process exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case Succeeded:
		return 0
	case Cancelled:
		return 2
	default:
		return 1
	}
}

// Result reports one pipeline run. The partial-result fields are
// populated up to the stage that was reached, so a publish failure
// still carries the built image, and a cancelled run shows how far it
// got.
type Result struct {
	FunctionName string
	Outcome      Outcome

	// Stage is the failing stage, or the next stage that would have run
	// for a cancelled result. Empty on success.
	Stage Stage

	Image     *builder.ImageRef
	Published *publish.PublishedImage
	Function  *function.Deployment

	// PublishSkipped is true when an unchanged build reused the
	// previously published image.
	PublishSkipped bool

	Err error
}

// StageError tags a stage failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

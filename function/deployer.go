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

package function

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/fnforge/fnforge/logging"
)

// Defaults for the readiness poll loop.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultTimeout      = 5 * time.Minute

	// maxPollInterval caps the exponential backoff between polls.
	maxPollInterval = 30 * time.Second
)

// LambdaAPI is the subset of the Lambda API the deployer uses.
type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
}

// Deployer creates or updates one function at a time.
//
// **Attributes:**
//
// Client: Lambda API subset.
// PollInterval: Initial delay between readiness polls.
// Timeout: Deadline for the function to become ready.
type Deployer struct {
	Client       LambdaAPI
	PollInterval time.Duration
	Timeout      time.Duration
}

// NewDeployer creates a Deployer with default polling behavior.
func NewDeployer(client LambdaAPI) *Deployer {
	return &Deployer{
		Client:       client,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

// Deploy converges the function to the spec: create it when absent,
// otherwise update only its code reference. It returns once the
// function is Active (create) or its last update succeeded (update).
func (d *Deployer) Deploy(ctx context.Context, spec Spec) (Deployment, error) {
	existing, err := d.Client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(spec.Name),
	})
	if err != nil {
		var notFound *lambdaTypes.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return Deployment{}, &DeployError{FunctionName: spec.Name, Err: err}
		}
		return d.create(ctx, spec)
	}

	return d.update(ctx, spec, existing)
}

func (d *Deployer) create(ctx context.Context, spec Spec) (Deployment, error) {
	if spec.Role == "" {
		return Deployment{}, &DeployError{
			FunctionName: spec.Name,
			Err:          fmt.Errorf("function does not exist and no execution role was provided"),
		}
	}

	logging.InfoContext(ctx, "Creating function %s with image %s", spec.Name, spec.ImageURI)

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		PackageType:  lambdaTypes.PackageTypeImage,
		Code:         &lambdaTypes.FunctionCode{ImageUri: aws.String(spec.ImageURI)},
		Role:         aws.String(spec.Role),
	}
	if spec.Description != "" {
		input.Description = aws.String(spec.Description)
	}

	out, err := d.Client.CreateFunction(ctx, input)
	if err != nil {
		return Deployment{}, &DeployError{FunctionName: spec.Name, Err: err}
	}

	if err := d.waitUntilReady(ctx, spec.Name, true); err != nil {
		return Deployment{}, err
	}

	return Deployment{
		ARN:      aws.ToString(out.FunctionArn),
		ImageURI: spec.ImageURI,
		Created:  true,
	}, nil
}

func (d *Deployer) update(ctx context.Context, spec Spec, existing *lambda.GetFunctionOutput) (Deployment, error) {
	logging.InfoContext(ctx, "Updating function %s to image %s", spec.Name, spec.ImageURI)

	// Only the code reference changes. Role, memory, timeout, and
	// environment keep whatever the live function has.
	out, err := d.Client.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(spec.Name),
		ImageUri:     aws.String(spec.ImageURI),
	})
	if err != nil {
		return Deployment{}, &DeployError{FunctionName: spec.Name, Err: err}
	}

	if err := d.waitUntilReady(ctx, spec.Name, false); err != nil {
		return Deployment{}, err
	}

	arn := aws.ToString(out.FunctionArn)
	if arn == "" && existing.Configuration != nil {
		arn = aws.ToString(existing.Configuration.FunctionArn)
	}

	return Deployment{ARN: arn, ImageURI: spec.ImageURI}, nil
}

// waitUntilReady polls the function until it is usable. Polling backs
// off exponentially from PollInterval up to maxPollInterval and gives
// up after Timeout.
func (d *Deployer) waitUntilReady(ctx context.Context, name string, creating bool) error {
	interval := d.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	poll := time.NewTimer(interval)
	defer poll.Stop()

	lastStatus := "unknown"

	for {
		select {
		case <-ctx.Done():
			return &DeployError{FunctionName: name, Err: ctx.Err()}
		case <-deadline.C:
			return &DeployTimeoutError{FunctionName: name, Timeout: timeout, LastStatus: lastStatus}
		case <-poll.C:
		}

		out, err := d.Client.GetFunction(ctx, &lambda.GetFunctionInput{
			FunctionName: aws.String(name),
		})
		if err != nil {
			return &DeployError{FunctionName: name, Err: err}
		}
		if out.Configuration == nil {
			return &DeployError{FunctionName: name, Err: fmt.Errorf("empty function configuration")}
		}

		ready, status, err := readiness(out.Configuration, creating)
		if err != nil {
			return &DeployError{FunctionName: name, Err: err}
		}
		if ready {
			logging.DebugContext(ctx, "Function %s is ready", name)
			return nil
		}

		lastStatus = status
		logging.DebugContext(ctx, "Function %s not ready yet (%s)", name, status)

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
		poll.Reset(interval)
	}
}

// readiness interprets the function state. Creation watches State;
// updates watch LastUpdateStatus.
func readiness(cfg *lambdaTypes.FunctionConfiguration, creating bool) (bool, string, error) {
	if creating {
		switch cfg.State {
		case lambdaTypes.StateActive:
			return true, string(cfg.State), nil
		case lambdaTypes.StateFailed:
			return false, "", fmt.Errorf("function entered Failed state: %s", aws.ToString(cfg.StateReason))
		default:
			return false, string(cfg.State), nil
		}
	}

	switch cfg.LastUpdateStatus {
	case lambdaTypes.LastUpdateStatusSuccessful:
		return true, string(cfg.LastUpdateStatus), nil
	case lambdaTypes.LastUpdateStatusFailed:
		return false, "", fmt.Errorf("function update failed: %s", aws.ToString(cfg.LastUpdateStatusReason))
	default:
		return false, string(cfg.LastUpdateStatus), nil
	}
}

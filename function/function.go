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

// Package function creates and updates container-image Lambda
// functions and waits until they are ready to serve.
package function

import (
	"fmt"
	"time"
)

// Spec describes the desired function state.
//
// **Attributes:**
//
// Name: Function name.
// ImageURI: Published image reference the function runs.
// Role: Execution role ARN, required only for creation.
// Description: Function description, applied only on creation.
//
// Updates change the code reference and nothing else; memory, timeout,
// role, and environment of an existing function are left untouched.
type Spec struct {
	Name        string
	ImageURI    string
	Role        string
	Description string
}

// Deployment reports a completed create or update.
//
// **Attributes:**
//
// ARN: Function ARN.
// ImageURI: Image reference the function now runs.
// Created: True when the function did not exist before this deploy.
type Deployment struct {
	ARN      string
	ImageURI string
	Created  bool
}

// DeployError reports a failed create or update.
type DeployError struct {
	FunctionName string
	Err          error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("failed to deploy function %s: %v", e.FunctionName, e.Err)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// DeployTimeoutError reports a function that never reached a ready
// state within the deadline. The deployment may still complete
// server-side afterwards.
type DeployTimeoutError struct {
	FunctionName string
	Timeout      time.Duration
	LastStatus   string
}

func (e *DeployTimeoutError) Error() string {
	return fmt.Sprintf("function %s not ready after %s (last status: %s)", e.FunctionName, e.Timeout, e.LastStatus)
}

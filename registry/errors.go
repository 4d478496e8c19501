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

package registry

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// AuthError reports a failed or rejected registry authentication.
type AuthError struct {
	Registry string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to authenticate with registry %s: %v", e.Registry, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RegistryError reports a failed repository operation.
type RegistryError struct {
	Repository string
	Op         string
	Err        error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("failed to %s repository %s: %v", e.Op, e.Repository, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// isAccessDenied reports whether an AWS API error is a permission
// problem rather than a repository problem.
func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnauthorizedOperation", "ExpiredTokenException", "UnrecognizedClientException":
		return true
	default:
		return false
	}
}

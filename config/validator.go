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

package config

import (
	"fmt"
	"os"
	"regexp"
)

// ConfigError reports an invalid configuration value. It is returned
// before any remote call is made.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

var (
	// ECR repository names: lowercase letters, digits, and separators
	// (/, -, _), starting with a letter or digit.
	repositoryNamePattern = regexp.MustCompile(`^[a-z0-9]+(?:[._\-/][a-z0-9]+)*$`)

	// Lambda function names without qualifier or ARN prefix.
	functionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]{1,64}$`)

	accountIDPattern = regexp.MustCompile(`^\d{12}$`)
)

// ValidationOptions controls validation behavior.
type ValidationOptions struct {
	// SyntaxOnly skips filesystem checks such as source dir existence.
	SyntaxOnly bool
}

// Validate checks the configuration with default options. The first
// invalid field aborts validation.
func (c *Config) Validate() error {
	return c.ValidateWithOptions(ValidationOptions{})
}

// ValidateWithOptions checks the configuration with custom options.
func (c *Config) ValidateWithOptions(opts ValidationOptions) error {
	if c.AWS.Region == "" {
		return &ConfigError{Field: "aws.region", Message: "region is required"}
	}
	if c.AWS.AccountID == "" {
		return &ConfigError{Field: "aws.account_id", Message: "account ID is required"}
	}
	if !accountIDPattern.MatchString(c.AWS.AccountID) {
		return &ConfigError{
			Field:   "aws.account_id",
			Message: fmt.Sprintf("%q is not a 12-digit AWS account ID", c.AWS.AccountID),
		}
	}

	if len(c.Targets) == 0 {
		return &ConfigError{Field: "targets", Message: "at least one target is required"}
	}

	for i := range c.Targets {
		if err := c.Targets[i].validate(i, opts); err != nil {
			return err
		}
	}

	return nil
}

func (t *Target) validate(index int, opts ValidationOptions) error {
	field := func(name string) string {
		return fmt.Sprintf("targets[%d].%s", index, name)
	}

	if !functionNamePattern.MatchString(t.FunctionName) {
		return &ConfigError{
			Field:   field("function_name"),
			Message: fmt.Sprintf("%q is not a valid Lambda function name", t.FunctionName),
		}
	}

	if !repositoryNamePattern.MatchString(t.Repository) {
		return &ConfigError{
			Field:   field("repository"),
			Message: fmt.Sprintf("%q must use lowercase letters, digits, and the separators / - _", t.Repository),
		}
	}

	// An explicit tag with digest addressing would silently never be
	// used for the function reference, so reject the combination.
	if t.ImageTag != "" && !t.UseImageTag {
		return &ConfigError{
			Field:   field("image_tag"),
			Message: "image_tag is set but use_image_tag is false; enable use_image_tag or remove the tag",
		}
	}

	if !opts.SyntaxOnly {
		info, err := os.Stat(t.SourceDir)
		if err != nil {
			return &ConfigError{
				Field:   field("source_dir"),
				Message: fmt.Sprintf("source directory %q not found", t.SourceDir),
			}
		}
		if !info.IsDir() {
			return &ConfigError{
				Field:   field("source_dir"),
				Message: fmt.Sprintf("%q is not a directory", t.SourceDir),
			}
		}
		if _, err := os.Stat(t.SourceDir + "/Dockerfile"); err != nil {
			return &ConfigError{
				Field:   field("source_dir"),
				Message: fmt.Sprintf("no Dockerfile in %q", t.SourceDir),
			}
		}
	}

	return nil
}

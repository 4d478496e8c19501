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

	"github.com/spf13/cobra"

	"github.com/fnforge/fnforge/config"
	"github.com/fnforge/fnforge/logging"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without deploying",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().Bool("syntax-only", false, "Skip filesystem checks such as source directory existence")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := configFromContext(cmd)
	if cfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	syntaxOnly, _ := cmd.Flags().GetBool("syntax-only")
	if err := cfg.ValidateWithOptions(config.ValidationOptions{SyntaxOnly: syntaxOnly}); err != nil {
		return err
	}

	logging.InfoContext(cmd.Context(), "Configuration is valid (%d target(s))", len(cfg.Targets))
	return nil
}

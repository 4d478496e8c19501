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
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fnforge/fnforge/config"
	"github.com/fnforge/fnforge/logging"
)

const version = "0.1.0"

// Context key type for storing the loaded config.
type configKeyType struct{}

var (
	configKey = configKeyType{}

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "fnforge",
	Short: "fnforge - container image Lambda deployer",
	Long: `fnforge builds a container image from a source directory, pushes it to
an ECR repository, and creates or updates the Lambda function that runs
it. Repeated runs converge: nothing is rebuilt, repushed, or redeployed
unless the source changed.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is $HOME/.fnforge/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json, color)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Quiet mode - only show errors")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose mode - show debug output")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(validateCmd)
}

// configFromContext retrieves the config loaded by initConfig.
func configFromContext(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey).(*config.Config); ok {
		return cfg
	}
	return nil
}

// initConfig loads configuration with the usual precedence:
// CLI flags > environment variables > config file > defaults.
func initConfig(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromPath(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetEnvPrefix("FNFORGE")
	v.AutomaticEnv()

	flags := cmd.Root().PersistentFlags()
	for viperKey, flagName := range map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		if err := v.BindPFlag(viperKey, flags.Lookup(flagName)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flagName, err)
		}
	}

	quiet, _ := flags.GetBool("quiet")
	verbose, _ := flags.GetBool("verbose")

	logger := logging.NewLoggerWithOptions(v.GetString("log.level"), v.GetString("log.format"), quiet, verbose)

	ctx := context.WithValue(cmd.Context(), configKey, cfg)
	ctx = logging.WithLogger(ctx, logger)
	cmd.SetContext(ctx)

	return nil
}

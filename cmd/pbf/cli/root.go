// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli holds the root command of the pbf tool and the plumbing shared
// by its subcommands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// ConfigEnv names the environment variable consulted when --config is not
// given.
const ConfigEnv = "PBF_CONFIG"

// Input is the file named by --input, stdin by default.
var Input *os.File

// RootCmd is the pbf command; subcommands register themselves in init.
var RootCmd = &cobra.Command{
	Use:           "pbf",
	Short:         "Inspect OpenStreetMap PBF files",
	Long:          "Inspect OpenStreetMap PBF files: header metadata, entity counts, blocks and entities.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()

		level, err := flags.GetString("log-level")
		if err != nil {
			return err
		}

		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

		path, err := flags.GetString("config")
		if err != nil {
			return err
		}

		if path == "" {
			path = os.Getenv(ConfigEnv)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			return err
		}

		current = cfg

		return nil
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file (default $"+ConfigEnv+")")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.VarP(NewReaderValue(os.Stdin, &Input, "file"), "input", "i", "OSM PBF file to read when no argument is given")
}

// Execute runs the root command and exits the process on failure. An
// interrupt cancels the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// OpenInput returns the file named by the single positional argument, or
// Input when there is none. The caller closes the file.
func OpenInput(args []string) (*os.File, error) {
	if len(args) == 1 {
		return os.Open(args[0])
	}

	return Input, nil
}

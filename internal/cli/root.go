/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd is the cortex command when called without any subcommand.
	RootCmd = &cobra.Command{
		Use:   "cortex",
		Short: "typed shared-memory cells for cooperating processes",
		Long: fmt.Sprintf(`cortex (v%s)

Create, attach, inspect and remove System V shared-memory cells guarded by
a cross-process lock. Every flag can also be set through a CORTEX_ prefixed
environment variable or a .env file.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: applyConfig,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cortex",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortex v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(createCmd)
	RootCmd.AddCommand(readCmd)
	RootCmd.AddCommand(writeCmd)
	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(benchCmd)
	RootCmd.AddCommand(versionCmd)

	key := "backend"
	RootCmd.PersistentFlags().String(key, "semaphore", wrapString("lock backend guarding the cell (semaphore, flock)"))
	key = "lock-dir"
	RootCmd.PersistentFlags().String(key, "", wrapString("directory of flock lock files, defaults to the system temp dir"))
	key = "log-level"
	RootCmd.PersistentFlags().Int(key, 3, wrapString("library log level (0 trace, 1 debug, 2 info, 3 warn, 4 error, 5 silent)"))
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

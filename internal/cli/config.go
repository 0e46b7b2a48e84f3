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
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/srediag/cortex/pkg/cortex"
	"github.com/srediag/cortex/pkg/flock"
	"github.com/srediag/cortex/pkg/semaphore"
)

const wrap = 60

// initConfig loads .env files and maps CORTEX_* variables onto flags.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("cortex")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func applyConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	cortex.SetLogLevel(viper.GetInt("log-level"))
	return nil
}

func backendFromConfig() (cortex.Backend, error) {
	switch name := viper.GetString("backend"); name {
	case "semaphore":
		return semaphore.New(semaphore.Settings{}), nil
	case "flock":
		return flock.New(flock.Settings{Dir: viper.GetString("lock-dir")}), nil
	default:
		return nil, fmt.Errorf("invalid backend %q", name)
	}
}

// parseKey accepts decimal, 0x hex or 0o octal keys. Zero is IPC_PRIVATE and
// cannot name a shared segment.
func parseKey(s string) (int32, error) {
	k, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	if k == 0 {
		return 0, fmt.Errorf("invalid key %q: zero is reserved", s)
	}
	return int32(k), nil
}

// wrapString wraps help text at wrap characters.
func wrapString(text string) string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

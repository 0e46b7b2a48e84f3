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
	"github.com/spf13/cobra"

	"github.com/srediag/cortex/pkg/cortex"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect [key]",
		Short: "Print kernel state of a cell without attaching",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Take over a cell and remove it with its lock",
		Long: `Attach to the cell, claim ownership and close it, which removes the
segment and its lock. Use it to clean up after a crashed owner.`,
		Args: cobra.ExactArgs(1),
		RunE: runRemove,
	}
)

func runInspect(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	info, err := cortex.Inspect(key, nil)
	if err != nil {
		return err
	}
	return writeFields(cmd.OutOrStdout(),
		"key", info.Key,
		"id", info.ID,
		"size", info.Size,
		"attached", info.Attached,
		"creator", info.CreatorPID,
		"last", info.LastPID,
		"creator_alive", info.CreatorAlive,
	)
}

func runRemove(cmd *cobra.Command, args []string) error {
	seg, err := attachCell(cmd, args[0])
	if err != nil {
		return err
	}
	if err := seg.ForceOwnership(); err != nil {
		_ = seg.Close()
		return err
	}
	if err := seg.Close(); err != nil {
		return err
	}
	return writeFields(cmd.OutOrStdout(), "key", seg.Key(), "removed", true)
}

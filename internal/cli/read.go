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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/srediag/cortex/pkg/cortex"
)

var (
	readCmd = &cobra.Command{
		Use:     "read [key]",
		Aliases: []string{"attach"},
		Short:   "Attach to a cell and print its value",
		Args:    cobra.ExactArgs(1),
		RunE:    runRead,
	}

	writeCmd = &cobra.Command{
		Use:   "write [key] [payload]",
		Short: "Replace the payload of a cell and bump its sequence number",
		Args:  cobra.ExactArgs(2),
		RunE:  runWrite,
	}
)

func attachCell(cmd *cobra.Command, arg string) (*cortex.Segment[Cell], error) {
	key, err := parseKey(arg)
	if err != nil {
		return nil, err
	}
	backend, err := backendFromConfig()
	if err != nil {
		return nil, err
	}
	return cortex.Attach[Cell](cmd.Context(), key, backend, nil)
}

func runRead(cmd *cobra.Command, args []string) error {
	seg, err := attachCell(cmd, args[0])
	if err != nil {
		return err
	}
	defer seg.Close() //nolint:errcheck

	cell, err := seg.Read()
	if err != nil {
		return err
	}
	return writeFields(cmd.OutOrStdout(), "key", seg.Key(), "seq", cell.Seq, "len", cell.Len, "payload", strconv.Quote(string(cell.Payload())))
}

func runWrite(cmd *cobra.Command, args []string) error {
	var next Cell
	if err := next.SetPayload([]byte(args[1])); err != nil {
		return err
	}
	seg, err := attachCell(cmd, args[0])
	if err != nil {
		return err
	}
	defer seg.Close() //nolint:errcheck

	var seq uint64
	err = seg.Update(func(c *Cell) {
		next.Seq = c.Seq + 1
		*c = next
		seq = next.Seq
	})
	if err != nil {
		return err
	}
	return writeFields(cmd.OutOrStdout(), "key", seg.Key(), "seq", seq)
}

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
	"io"

	"github.com/valyala/bytebufferpool"
)

// CellPayload is the payload capacity of a Cell.
const CellPayload = 240

// Cell is the value the CLI keeps in shared memory.
type Cell struct {
	Seq  uint64
	Len  uint32
	Data [CellPayload]byte
}

// SetPayload copies p into the cell.
func (c *Cell) SetPayload(p []byte) error {
	if len(p) > CellPayload {
		return fmt.Errorf("payload of %d bytes exceeds %d", len(p), CellPayload)
	}
	c.Data = [CellPayload]byte{}
	copy(c.Data[:], p)
	c.Len = uint32(len(p))
	return nil
}

// Payload returns the stored bytes. A corrupt length is clamped.
func (c *Cell) Payload() []byte {
	n := min(int(c.Len), CellPayload)
	return c.Data[:n]
}

// writeFields prints key=value pairs on one line.
func writeFields(w io.Writer, kv ...any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			_ = buf.WriteByte(' ')
		}
		fmt.Fprintf(buf, "%v=%v", kv[i], kv[i+1])
	}
	_ = buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

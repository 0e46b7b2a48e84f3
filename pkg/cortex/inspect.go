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

package cortex

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// SegmentInfo is the kernel's view of a segment, for operators deciding
// whether an existing segment was abandoned.
type SegmentInfo struct {
	Key        int32
	ID         int
	Size       int
	Attached   uint64
	CreatorPID int32
	LastPID    int32
	// CreatorAlive is false when the creating process no longer exists.
	CreatorAlive bool
}

// Inspect looks up the segment published under key without attaching to it.
func Inspect(key int32, opts *Options) (SegmentInfo, error) {
	r := opts.resolve()
	id, err := r.platform.Lookup(key)
	if err != nil {
		return SegmentInfo{}, cleanError("inspect", key, err)
	}
	return inspect(r, key, id)
}

// Info reports the kernel's view of the segment behind s.
func (s *Segment[T]) Info() (SegmentInfo, error) {
	return inspect(&resolved{platform: s.platform}, s.key, s.id)
}

func inspect(r *resolved, key int32, id int) (SegmentInfo, error) {
	st, err := r.platform.Stat(id)
	if err != nil {
		return SegmentInfo{}, cleanError("inspect", key, err)
	}
	info := SegmentInfo{
		Key:        key,
		ID:         st.ID,
		Size:       st.Size,
		Attached:   st.Attached,
		CreatorPID: st.CreatorPID,
		LastPID:    st.LastPID,
	}
	if st.CreatorPID > 0 {
		alive, err := process.PidExists(st.CreatorPID)
		if err != nil {
			return info, cleanError("inspect", key, fmt.Errorf("check creator pid %d: %w", st.CreatorPID, err))
		}
		info.CreatorAlive = alive
	}
	return info, nil
}

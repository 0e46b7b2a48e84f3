//go:build linux

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

package shm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	// segmentMode grants read/write to every user, matching what cooperating
	// processes running under different uids expect from a shared cell.
	segmentMode = 0o666
)

var defaultPlatform Platform = SysV{}

// SysV implements Platform with shmget/shmat/shmdt/shmctl.
type SysV struct{}

// Create allocates a new segment of size bytes for key. It never attaches
// to an existing segment.
func (SysV) Create(key int32, size int) (int, error) {
	id, err := unix.SysvShmGet(int(key), size, unix.IPC_CREAT|unix.IPC_EXCL|segmentMode)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return -1, fmt.Errorf("shmget key %d: %w", key, ErrExist)
		}
		return -1, fmt.Errorf("shmget key %d size %d: %w", key, size, err)
	}
	return id, nil
}

// Lookup finds the segment identified by key without creating it.
func (SysV) Lookup(key int32) (int, error) {
	// size 0 matches any existing segment
	id, err := unix.SysvShmGet(int(key), 0, segmentMode)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return -1, fmt.Errorf("shmget key %d: %w", key, ErrNotExist)
		}
		return -1, fmt.Errorf("shmget key %d: %w", key, err)
	}
	return id, nil
}

// Attach maps the segment into the address space of the calling process.
// The returned slice spans the whole segment.
func (SysV) Attach(id int) ([]byte, error) {
	mem, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat id %d: %w", id, err)
	}
	return mem, nil
}

// Detach unmaps a region previously returned by Attach.
func (SysV) Detach(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.SysvShmDetach(mem); err != nil {
		return fmt.Errorf("shmdt: %w", err)
	}
	return nil
}

// Remove marks the segment for destruction.
func (SysV) Remove(id int) error {
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
			return fmt.Errorf("shmctl IPC_RMID id %d: %w", id, ErrNotExist)
		}
		return fmt.Errorf("shmctl IPC_RMID id %d: %w", id, err)
	}
	return nil
}

// Stat reports the kernel's view of the segment.
func (SysV) Stat(id int) (Stat, error) {
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(id, unix.IPC_STAT, &desc); err != nil {
		if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
			return Stat{}, fmt.Errorf("shmctl IPC_STAT id %d: %w", id, ErrNotExist)
		}
		return Stat{}, fmt.Errorf("shmctl IPC_STAT id %d: %w", id, err)
	}
	return Stat{
		ID:         id,
		Key:        int32(desc.Perm.Key),
		Size:       int(desc.Segsz),
		Attached:   uint64(desc.Nattch),
		CreatorPID: int32(desc.Cpid),
		LastPID:    int32(desc.Lpid),
		Mode:       uint32(desc.Perm.Mode),
	}, nil
}

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

// Package shm contains the operating system primitives behind a cortex
// segment: exclusive creation, lookup, attach, detach and removal of
// System V shared memory segments addressed by an integer key.
package shm

import "errors"

var (
	// ErrExist is returned by Create when the key already names a segment.
	ErrExist = errors.New("shm: segment already exists")
	// ErrNotExist is returned by Lookup when no segment carries the key.
	ErrNotExist = errors.New("shm: segment does not exist")
	// ErrUnsupported is returned on platforms without System V shared memory.
	ErrUnsupported = errors.New("shm: shared memory segments are not supported on this platform")
)

// Stat describes a live segment as reported by the kernel.
type Stat struct {
	ID         int
	Key        int32
	Size       int
	Attached   uint64
	CreatorPID int32
	LastPID    int32
	Mode       uint32
}

// Platform maps segment operations onto an operating system.
//
// Create must use exclusive-creation semantics and report a key collision
// with an error wrapping ErrExist. Remove only marks the segment for
// destruction; the kernel reclaims it after the last detach.
type Platform interface {
	Create(key int32, size int) (id int, err error)
	Lookup(key int32) (id int, err error)
	Attach(id int) ([]byte, error)
	Detach(mem []byte) error
	Remove(id int) error
	Stat(id int) (Stat, error)
}

// Default returns the platform implementation for the running OS.
func Default() Platform {
	return defaultPlatform
}

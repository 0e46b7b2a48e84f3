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

// Package shmtest provides an in-process shm.Platform with fault injection.
package shmtest

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/srediag/cortex/internal/shm"
)

type segment struct {
	id       int
	key      int32
	mem      []byte
	attached int
	removed  bool
}

// Platform keeps segments in heap memory. Attaching a segment twice returns
// the same backing memory, so handles observe each other's writes.
type Platform struct {
	mu     sync.Mutex
	nextID int
	byKey  map[int32]*segment
	byID   map[int]*segment
	byAddr map[*byte]*segment

	// CreateErr, when set, is consulted before every Create. A non-nil
	// result fails the call.
	CreateErr func(key int32) error
	AttachErr error
	DetachErr error
	RemoveErr error

	creates int
	removes int
}

// NewPlatform returns an empty platform.
func NewPlatform() *Platform {
	return &Platform{
		nextID: 1,
		byKey:  make(map[int32]*segment),
		byID:   make(map[int]*segment),
		byAddr: make(map[*byte]*segment),
	}
}

var _ shm.Platform = (*Platform)(nil)

func (p *Platform) Create(key int32, size int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	if p.CreateErr != nil {
		if err := p.CreateErr(key); err != nil {
			return -1, err
		}
	}
	if _, ok := p.byKey[key]; ok {
		return -1, fmt.Errorf("create key %d: %w", key, shm.ErrExist)
	}
	if size <= 0 {
		return -1, fmt.Errorf("create key %d: invalid size %d", key, size)
	}
	// word-backed so the value type is at least 8-byte aligned
	words := make([]uint64, (size+7)/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	s := &segment{id: p.nextID, key: key, mem: mem}
	p.nextID++
	p.byKey[key] = s
	p.byID[s.id] = s
	return s.id, nil
}

func (p *Platform) Lookup(key int32) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byKey[key]
	if !ok {
		return -1, fmt.Errorf("lookup key %d: %w", key, shm.ErrNotExist)
	}
	return s.id, nil
}

func (p *Platform) Attach(id int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AttachErr != nil {
		return nil, p.AttachErr
	}
	s, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("attach id %d: %w", id, shm.ErrNotExist)
	}
	s.attached++
	p.byAddr[unsafe.SliceData(s.mem)] = s
	return s.mem, nil
}

func (p *Platform) Detach(mem []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DetachErr != nil {
		return p.DetachErr
	}
	s, ok := p.byAddr[unsafe.SliceData(mem)]
	if !ok || s.attached == 0 {
		return fmt.Errorf("detach: region not attached")
	}
	s.attached--
	p.reap(s)
	return nil
}

func (p *Platform) Remove(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RemoveErr != nil {
		return p.RemoveErr
	}
	s, ok := p.byID[id]
	if !ok || s.removed {
		return fmt.Errorf("remove id %d: %w", id, shm.ErrNotExist)
	}
	p.removes++
	s.removed = true
	// like IPC_RMID, the key is freed immediately
	delete(p.byKey, s.key)
	p.reap(s)
	return nil
}

func (p *Platform) Stat(id int) (shm.Stat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byID[id]
	if !ok {
		return shm.Stat{}, fmt.Errorf("stat id %d: %w", id, shm.ErrNotExist)
	}
	return shm.Stat{
		ID:       s.id,
		Key:      s.key,
		Size:     len(s.mem),
		Attached: uint64(s.attached),
		Mode:     0o666,
	}, nil
}

func (p *Platform) reap(s *segment) {
	if s.removed && s.attached == 0 {
		delete(p.byID, s.id)
		delete(p.byAddr, unsafe.SliceData(s.mem))
	}
}

// Exists reports whether key names a live, non-removed segment.
func (p *Platform) Exists(key int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byKey[key]
	return ok
}

// Attached returns the attach count of the segment under key, or -1.
func (p *Platform) Attached(key int32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byKey[key]
	if !ok {
		return -1
	}
	return s.attached
}

// Creates returns how many Create calls were made.
func (p *Platform) Creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates
}

// Removes returns how many segments were marked for removal.
func (p *Platform) Removes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removes
}

// Bytes returns the backing memory of the segment under key, or nil.
func (p *Platform) Bytes(key int32) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.byKey[key]; ok {
		return s.mem
	}
	return nil
}

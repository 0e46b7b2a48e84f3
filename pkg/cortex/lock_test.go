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
	"sync"
)

// memLocks is an in-process Backend. Locks attached to the same key share
// one mutex, like handles of different processes share one semaphore.
type memLocks struct {
	mu   sync.Mutex
	keys map[int32]*lockState

	newErr     error
	attachErr  error
	forceErr   error
	acquireErr error
	releaseErr error

	destroyed int
	closed    int
}

type lockState struct {
	mu     sync.Mutex
	forced int
}

func newMemLocks() *memLocks {
	return &memLocks{keys: make(map[int32]*lockState)}
}

func (b *memLocks) fault(p *error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *p
}

func (b *memLocks) New(key int32) (Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newErr != nil {
		return nil, b.newErr
	}
	st, ok := b.keys[key]
	if !ok {
		st = &lockState{}
		b.keys[key] = st
	}
	return &memLock{backend: b, key: key, state: st, owner: true}, nil
}

func (b *memLocks) Attach(key int32) (Lock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attachErr != nil {
		return nil, b.attachErr
	}
	st, ok := b.keys[key]
	if !ok {
		return nil, fmt.Errorf("no lock for key %d", key)
	}
	return &memLock{backend: b, key: key, state: st}, nil
}

func (b *memLocks) exists(key int32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.keys[key]
	return ok
}

func (b *memLocks) forced(key int32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.keys[key]; ok {
		return st.forced
	}
	return 0
}

func (b *memLocks) counts() (destroyed, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed, b.closed
}

type memLock struct {
	backend *memLocks
	key     int32
	state   *lockState
	owner   bool
}

func (l *memLock) ForceOwnership() error {
	if err := l.backend.fault(&l.backend.forceErr); err != nil {
		return err
	}
	l.backend.mu.Lock()
	l.state.forced++
	l.backend.mu.Unlock()
	l.owner = true
	return nil
}

func (l *memLock) ReadLock() error { return l.acquire() }

func (l *memLock) WriteLock() error { return l.acquire() }

func (l *memLock) acquire() error {
	if err := l.backend.fault(&l.backend.acquireErr); err != nil {
		return err
	}
	l.state.mu.Lock()
	return nil
}

func (l *memLock) Release() error {
	l.state.mu.Unlock()
	return l.backend.fault(&l.backend.releaseErr)
}

func (l *memLock) Destroy() error {
	if !l.owner {
		return nil
	}
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()
	delete(l.backend.keys, l.key)
	l.backend.destroyed++
	return nil
}

func (l *memLock) Close() error {
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()
	l.backend.closed++
	return nil
}

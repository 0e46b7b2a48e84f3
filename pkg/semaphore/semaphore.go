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

// Package semaphore is a cortex lock backend built on a System V semaphore
// that shares the segment's key.
//
// Acquisitions use SEM_UNDO, so the kernel gives the semaphore back when a
// holder exits or crashes inside the exclusive section. ForceOwnership
// resets the count only when the process that last held it is gone.
package semaphore

import (
	"errors"
	"fmt"

	"github.com/srediag/cortex/pkg/cortex"
)

// ErrUnsupported is returned on platforms without System V semaphores.
var ErrUnsupported = errors.New("semaphore: System V semaphores are not supported on this platform")

const (
	defaultMode    = 0o666
	defaultInitial = 1
)

// Settings configures semaphores created by a Backend.
type Settings struct {
	// Mode holds the permission bits of created semaphores. Defaults to 0666.
	Mode uint32
	// Initial is the number of concurrent holders. Defaults to 1; values
	// above 1 give up mutual exclusion.
	Initial int
}

func (s Settings) withDefaults() (Settings, error) {
	if s.Mode == 0 {
		s.Mode = defaultMode
	}
	if s.Initial == 0 {
		s.Initial = defaultInitial
	}
	if s.Initial < 0 {
		return s, fmt.Errorf("semaphore: initial value %d must be positive", s.Initial)
	}
	if s.Mode&^0o777 != 0 {
		return s, fmt.Errorf("semaphore: mode %o has bits outside 0777", s.Mode)
	}
	return s, nil
}

// Backend creates and attaches semaphores.
type Backend struct {
	settings Settings
	err      error
}

var _ cortex.Backend = (*Backend)(nil)

// New returns a Backend using settings. Invalid settings are reported by
// the first New call.
func New(settings Settings) *Backend {
	s, err := settings.withDefaults()
	return &Backend{settings: s, err: err}
}

// New creates the semaphore for key and sets it to the initial value.
func (b *Backend) New(key int32) (cortex.Lock, error) {
	if b.err != nil {
		return nil, b.err
	}
	l, err := create(key, b.settings)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Attach opens the semaphore already created for key.
func (b *Backend) Attach(key int32) (cortex.Lock, error) {
	if b.err != nil {
		return nil, b.err
	}
	l, err := open(key, b.settings)
	if err != nil {
		return nil, err
	}
	return l, nil
}

//go:build unix

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

// Package flock is a cortex lock backend using flock(2) on a lock file per
// key. The kernel drops the lock when the holding process exits, so a crash
// inside the exclusive section never wedges other processes.
package flock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/srediag/cortex/pkg/cortex"
)

const defaultMode = 0o666

// Settings configures where lock files live.
type Settings struct {
	// Dir holds the lock files. Defaults to os.TempDir().
	Dir string
	// Mode holds the permission bits of created lock files. Defaults to 0666.
	Mode fs.FileMode
}

// Backend creates and attaches file locks.
type Backend struct {
	settings Settings
}

var _ cortex.Backend = (*Backend)(nil)

// New returns a Backend using settings.
func New(settings Settings) *Backend {
	if settings.Dir == "" {
		settings.Dir = os.TempDir()
	}
	if settings.Mode == 0 {
		settings.Mode = defaultMode
	}
	return &Backend{settings: settings}
}

// Path returns the lock file used for key.
func (b *Backend) Path(key int32) string {
	return filepath.Join(b.settings.Dir, "cortex-"+strconv.FormatInt(int64(key), 10)+".lock")
}

// New creates the lock file for key, reusing one left by a crashed owner.
func (b *Backend) New(key int32) (cortex.Lock, error) {
	path := b.Path(key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, b.settings.Mode)
	if err != nil {
		return nil, fmt.Errorf("flock: create %s: %w", path, err)
	}
	l := &Lock{key: key, path: path, f: f}
	l.owner.Store(true)
	return l, nil
}

// Attach opens the lock file of key. It fails if the file does not exist.
func (b *Backend) Attach(key int32) (cortex.Lock, error) {
	path := b.Path(key)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("flock: open %s: %w", path, err)
	}
	return &Lock{key: key, path: path, f: f}, nil
}

// Lock holds an open lock file. flock(2) does not exclude holders sharing
// one open file, so goroutines of this process also serialize on mu.
type Lock struct {
	key   int32
	path  string
	f     *os.File
	mu    sync.Mutex
	owner atomic.Bool
}

// ForceOwnership marks the lock as owned. The kernel already released any
// flock held by a crashed process, so there is no state to reset.
func (l *Lock) ForceOwnership() error {
	l.owner.Store(true)
	return nil
}

func (l *Lock) ReadLock() error {
	return l.acquire()
}

func (l *Lock) WriteLock() error {
	return l.acquire()
}

func (l *Lock) acquire() error {
	l.mu.Lock()
	for {
		err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		l.mu.Unlock()
		return fmt.Errorf("flock: lock %s: %w", l.path, err)
	}
}

func (l *Lock) Release() error {
	defer l.mu.Unlock()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("flock: unlock %s: %w", l.path, err)
	}
	return nil
}

// Destroy removes the lock file if this lock owns it.
func (l *Lock) Destroy() error {
	if !l.owner.Load() {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("flock: remove %s: %w", l.path, err)
	}
	return nil
}

// Close closes the lock file descriptor.
func (l *Lock) Close() error {
	return l.f.Close()
}

//go:build linux && (amd64 || arm64)

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

package semaphore

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// semctl commands and semop flags from <linux/sem.h>
const (
	getPid  = 11
	getVal  = 12
	setVal  = 16
	semUndo = 0x1000
)

type sembuf struct {
	num uint16
	op  int16
	flg int16
}

// Lock is a semaphore-backed cortex.Lock.
type Lock struct {
	key     int32
	id      int
	initial int
	owner   atomic.Bool
}

func create(key int32, s Settings) (*Lock, error) {
	id, err := semget(key, unix.IPC_CREAT|unix.IPC_EXCL|int(s.Mode))
	created := err == nil
	if errors.Is(err, unix.EEXIST) {
		// Left behind by an owner that never tore down. The segment for this
		// key was just created exclusively, so no live handle uses it.
		id, err = semget(key, int(s.Mode))
	}
	if err != nil {
		return nil, fmt.Errorf("semget key %d: %w", key, err)
	}
	if err := semctl(id, setVal, s.Initial); err != nil {
		if created {
			_ = semctl(id, unix.IPC_RMID, 0)
		}
		return nil, fmt.Errorf("semctl SETVAL key %d: %w", key, err)
	}
	l := &Lock{key: key, id: id, initial: s.Initial}
	l.owner.Store(true)
	return l, nil
}

func open(key int32, s Settings) (*Lock, error) {
	id, err := semget(key, 0)
	if err != nil {
		return nil, fmt.Errorf("semget key %d: %w", key, err)
	}
	return &Lock{key: key, id: id, initial: s.Initial}, nil
}

// pidAlive reports whether pid still runs. Lookup failures count as alive
// so an unknown holder is never dispossessed.
var pidAlive = func(pid int32) bool {
	ok, err := process.PidExists(pid)
	return err != nil || ok
}

// ForceOwnership claims the semaphore. SEM_UNDO already gives back the count
// of a holder that crashed, so the count is only reset when it is below the
// initial value and the process that last changed it is gone. A live holder
// keeps its exclusive section.
func (l *Lock) ForceOwnership() error {
	v, err := l.Value()
	if err != nil {
		return err
	}
	if v < l.initial {
		pid, err := l.lastPID()
		if err != nil {
			return err
		}
		if !pidAlive(pid) {
			if err := semctl(l.id, setVal, l.initial); err != nil {
				return fmt.Errorf("semctl SETVAL key %d: %w", l.key, err)
			}
		}
	}
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
	if err := semop(l.id, -1); err != nil {
		return fmt.Errorf("semop acquire key %d: %w", l.key, err)
	}
	return nil
}

func (l *Lock) Release() error {
	if err := semop(l.id, 1); err != nil {
		return fmt.Errorf("semop release key %d: %w", l.key, err)
	}
	return nil
}

// Destroy removes the semaphore if this lock owns it.
func (l *Lock) Destroy() error {
	if !l.owner.Load() {
		return nil
	}
	err := semctl(l.id, unix.IPC_RMID, 0)
	if err == nil || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
		return nil
	}
	return fmt.Errorf("semctl IPC_RMID key %d: %w", l.key, err)
}

// Value returns the current semaphore count.
func (l *Lock) Value() (int, error) {
	r, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(l.id), 0, getVal, 0, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("semctl GETVAL key %d: %w", l.key, errno)
	}
	return int(r), nil
}

// lastPID returns the pid of the last process to operate on the semaphore.
func (l *Lock) lastPID() (int32, error) {
	r, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(l.id), 0, getPid, 0, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("semctl GETPID key %d: %w", l.key, errno)
	}
	return int32(r), nil
}

func semget(key int32, flags int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), 1, uintptr(flags))
	if errno != 0 {
		return -1, errno
	}
	return int(id), nil
}

func semctl(id, cmd, arg int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, uintptr(cmd), uintptr(arg), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semop(id int, delta int16) error {
	op := sembuf{num: 0, op: delta, flg: semUndo}
	for {
		_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(id), uintptr(unsafe.Pointer(&op)), 1)
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

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
	"errors"
	"fmt"
)

var (
	// ErrKeyInUse reports that a segment already exists under the requested
	// key, or that every generated key collided.
	ErrKeyInUse = errors.New("cortex: key already names a shared memory segment")
	// ErrInvalidType reports a value type that cannot live in shared memory.
	ErrInvalidType = errors.New("cortex: value type is not a fixed-size pointer-free type")
	// ErrSizeMismatch reports an existing segment smaller than the value type.
	ErrSizeMismatch = errors.New("cortex: segment is smaller than the value type")
	// ErrClosed is returned by operations on a handle after Close.
	ErrClosed = errors.New("cortex: segment handle is closed")
	// ErrInvalidKey reports key 0, which the OS reserves for private
	// segments no other process can look up.
	ErrInvalidKey = errors.New("cortex: key 0 cannot name a shared segment")
	// ErrNoBackend is returned when no lock backend was supplied.
	ErrNoBackend = errors.New("cortex: no lock backend configured")
)

// Kind tells whether a failure left OS-visible state behind.
type Kind uint8

const (
	// KindClean failures happened before any OS resource was created.
	KindClean Kind = iota
	// KindDirty failures happened after a segment was created; best-effort
	// cleanup was attempted and its outcome is in Error.Cleanup.
	KindDirty
)

func (k Kind) String() string {
	switch k {
	case KindClean:
		return "clean"
	case KindDirty:
		return "dirty"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the error type returned by segment creation, attach, read and write.
type Error struct {
	Kind Kind
	// Op is the failed step, e.g. "create", "attach", "lock".
	Op  string
	Key int32
	Err error
	// Cleanup holds the failure of the best-effort cleanup that followed a
	// dirty failure, if any. It never replaces Err.
	Cleanup error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cortex %s key %d (%s): %v", e.Op, e.Key, e.Kind, e.Err)
	if e.Cleanup != nil {
		msg += fmt.Sprintf("; cleanup failed: %v", e.Cleanup)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func cleanError(op string, key int32, err error) *Error {
	return &Error{Kind: KindClean, Op: op, Key: key, Err: err}
}

func dirtyError(op string, key int32, err, cleanup error) *Error {
	return &Error{Kind: KindDirty, Op: op, Key: key, Err: err, Cleanup: cleanup}
}

// IsClean reports whether err is a cortex failure with no side effect left.
func IsClean(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindClean
}

// IsDirty reports whether err is a cortex failure that required cleanup.
func IsDirty(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindDirty
}

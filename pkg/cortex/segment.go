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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/cortex/internal/shm"
)

// Segment is a handle on a shared memory segment holding exactly one T.
//
// T must be fixed-size and pointer-free: the value is copied bytewise in and
// out of memory that other processes map at different addresses. Every
// process attaching a key must use the same T.
//
// A Segment is safe for concurrent use. Close must be called to detach the
// mapping; owner handles also remove the segment and its lock.
type Segment[T any] struct {
	key  int32
	id   int
	size int
	lock Lock

	// mu orders Read, Write and ForceOwnership against teardown. The
	// cross-process exclusion is the job of lock.
	mu     sync.RWMutex
	owner  bool
	closed bool
	mem    []byte
	ptr    *T

	platform shm.Platform
	lockWait metric.Float64Histogram
	metrics  *Metrics
	registry *Registry
	regName  string

	closeOnce sync.Once
	closeErr  error
}

// New allocates a segment holding data, or takes over an existing one.
//
// With a nil key, keys are generated until an unused one is found, up to
// MaxKeyAttempts. With an explicit key that already names a segment, New
// fails with ErrKeyInUse unless forceOwnership is set, in which case it
// attaches to the existing segment and lock, keeps their content, and claims
// ownership. The returned handle is always an owner.
func New[T any](ctx context.Context, key *int32, data T, forceOwnership bool, backend Backend, opts *Options) (*Segment[T], error) {
	r := opts.resolve()
	_, span := r.tracer.Start(ctx, "cortex.New", trace.WithAttributes(
		attribute.Bool("cortex.explicit_key", key != nil),
		attribute.Bool("cortex.force_ownership", forceOwnership),
	))
	defer span.End()

	s, err := create(r, key, data, forceOwnership, backend)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("cortex.key", int64(s.key)), attribute.Int("cortex.id", s.id))
	return s, nil
}

// Attach joins the segment and lock already published under key. The handle
// is not an owner: closing it leaves the segment in place.
func Attach[T any](ctx context.Context, key int32, backend Backend, opts *Options) (*Segment[T], error) {
	r := opts.resolve()
	_, span := r.tracer.Start(ctx, "cortex.Attach", trace.WithAttributes(attribute.Int64("cortex.key", int64(key))))
	defer span.End()

	s, err := attach[T](r, key, backend)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("cortex.id", s.id))
	return s, nil
}

func create[T any](r *resolved, key *int32, data T, force bool, backend Backend) (*Segment[T], error) {
	var k int32
	if key != nil {
		k = *key
	}
	if backend == nil {
		return nil, cleanError("create", k, ErrNoBackend)
	}
	if key != nil && k == privateKey {
		return nil, cleanError("create", k, ErrInvalidKey)
	}
	size, err := valueSize[T]()
	if err != nil {
		return nil, cleanError("create", k, err)
	}

	var id int
	if key != nil {
		id, err = r.platform.Create(k, size)
		if err != nil {
			if !errors.Is(err, shm.ErrExist) {
				return nil, cleanError("create", k, err)
			}
			r.metrics.record(eventCollision)
			if !force {
				return nil, cleanError("create", k, fmt.Errorf("%w: %w", ErrKeyInUse, err))
			}
			return takeover[T](r, k, backend)
		}
	} else {
		k, id, err = createWithGeneratedKey(r, size)
		if err != nil {
			return nil, err
		}
	}
	internalLogger.tracef("allocated %d bytes with id %d for key %d", size, id, k)

	mem, err := r.platform.Attach(id)
	if err != nil {
		cleanup := r.platform.Remove(id)
		if cleanup != nil {
			internalLogger.errorf("remove segment id %d after failed attach: %v", id, cleanup)
		}
		return nil, dirtyError("attach", k, err, cleanup)
	}
	internalLogger.tracef("attached to shared memory id %d", id)

	ptr := (*T)(unsafe.Pointer(unsafe.SliceData(mem)))
	*ptr = data

	lock, err := backend.New(k)
	if err != nil {
		cleanup := errors.Join(r.platform.Detach(mem), r.platform.Remove(id))
		if cleanup != nil {
			internalLogger.errorf("release segment id %d after failed lock creation: %v", id, cleanup)
		}
		return nil, dirtyError("lock", k, err, cleanup)
	}
	r.metrics.record(eventCreated)
	return newSegment[T](r, k, id, size, lock, mem, true), nil
}

// createWithGeneratedKey tries up to MaxKeyAttempts generated keys. Only key
// collisions are retried.
func createWithGeneratedKey(r *resolved, size int) (int32, int, error) {
	var (
		key      int32
		id       int
		attempts int
	)
	op := func() error {
		attempts++
		key = r.keygen()
		var err error
		id, err = r.platform.Create(key, size)
		if err == nil {
			return nil
		}
		if errors.Is(err, shm.ErrExist) {
			r.metrics.record(eventCollision)
			internalLogger.debugf("generated key %d in use (attempt %d/%d)", key, attempts, MaxKeyAttempts)
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, MaxKeyAttempts-1))
	if err != nil {
		if errors.Is(err, shm.ErrExist) {
			err = fmt.Errorf("%w after %d generated keys: %w", ErrKeyInUse, attempts, err)
		}
		return key, -1, cleanError("create", key, err)
	}
	return key, id, nil
}

func takeover[T any](r *resolved, key int32, backend Backend) (*Segment[T], error) {
	s, err := attach[T](r, key, backend)
	if err != nil {
		return nil, err
	}
	if err := s.ForceOwnership(); err != nil {
		_ = s.Close()
		return nil, err
	}
	internalLogger.infof("took over segment id %d for key %d", s.id, key)
	return s, nil
}

func attach[T any](r *resolved, key int32, backend Backend) (*Segment[T], error) {
	if backend == nil {
		return nil, cleanError("attach", key, ErrNoBackend)
	}
	if key == privateKey {
		return nil, cleanError("attach", key, ErrInvalidKey)
	}
	size, err := valueSize[T]()
	if err != nil {
		return nil, cleanError("attach", key, err)
	}
	lock, err := backend.Attach(key)
	if err != nil {
		return nil, cleanError("lock", key, err)
	}
	id, err := r.platform.Lookup(key)
	if err != nil {
		closeLock(lock, key)
		return nil, cleanError("lookup", key, err)
	}
	internalLogger.tracef("found shared memory with id %d for key %d", id, key)

	mem, err := r.platform.Attach(id)
	if err != nil {
		closeLock(lock, key)
		return nil, cleanError("attach", key, err)
	}
	if len(mem) < size {
		if derr := r.platform.Detach(mem); derr != nil {
			internalLogger.errorf("detach undersized segment id %d: %v", id, derr)
		}
		closeLock(lock, key)
		return nil, cleanError("attach", key, fmt.Errorf("%w: segment has %d bytes, value needs %d", ErrSizeMismatch, len(mem), size))
	}
	internalLogger.tracef("attached to shared memory id %d", id)
	r.metrics.record(eventAttached)
	return newSegment[T](r, key, id, size, lock, mem, false), nil
}

func newSegment[T any](r *resolved, key int32, id, size int, lock Lock, mem []byte, owner bool) *Segment[T] {
	s := &Segment[T]{
		key:      key,
		id:       id,
		size:     size,
		lock:     lock,
		owner:    owner,
		mem:      mem,
		ptr:      (*T)(unsafe.Pointer(unsafe.SliceData(mem))),
		platform: r.platform,
		lockWait: r.lockWait,
		metrics:  r.metrics,
		registry: r.registry,
	}
	s.regName = r.registry.track(key, s)
	return s
}

func closeLock(lock Lock, key int32) {
	c, ok := lock.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		internalLogger.warnf("close lock for key %d: %v", key, err)
	}
}

// Key returns the key naming the segment and its lock.
func (s *Segment[T]) Key() int32 { return s.key }

// ID returns the OS segment identifier.
func (s *Segment[T]) ID() int { return s.id }

// Size returns the byte size of T.
func (s *Segment[T]) Size() int { return s.size }

// IsOwner reports whether closing s removes the segment.
func (s *Segment[T]) IsOwner() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Read returns a copy of the shared value taken inside the exclusive section.
func (s *Segment[T]) Read() (v T, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return v, cleanError("read", s.key, ErrClosed)
	}
	if err := s.acquire("read", s.lock.ReadLock); err != nil {
		return v, cleanError("read", s.key, err)
	}
	defer func() {
		if s.release(&err); err != nil {
			var zero T
			v = zero
		}
	}()
	return *s.ptr, nil
}

// Write replaces the shared value inside the exclusive section.
func (s *Segment[T]) Write(v T) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cleanError("write", s.key, ErrClosed)
	}
	if err := s.acquire("write", s.lock.WriteLock); err != nil {
		return cleanError("write", s.key, err)
	}
	defer s.release(&err)
	*s.ptr = v
	return nil
}

// Update applies fn to a copy of the shared value and stores the result, all
// within one exclusive section. If fn panics the value is left unchanged and
// the lock is released before the panic continues.
func (s *Segment[T]) Update(fn func(*T)) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cleanError("update", s.key, ErrClosed)
	}
	if err := s.acquire("update", s.lock.WriteLock); err != nil {
		return cleanError("update", s.key, err)
	}
	defer s.release(&err)
	v := *s.ptr
	fn(&v)
	*s.ptr = v
	return nil
}

// release leaves the exclusive section and reports a failure through err
// unless an earlier error is already set.
func (s *Segment[T]) release(err *error) {
	if rerr := s.lock.Release(); rerr != nil && *err == nil {
		*err = cleanError("release", s.key, rerr)
	}
}

func (s *Segment[T]) acquire(op string, lockFn func() error) error {
	start := time.Now()
	err := lockFn()
	s.lockWait.Record(context.Background(), time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("cortex.op", op)))
	return err
}

// ForceOwnership makes s responsible for removing the segment and its lock,
// and lets the lock reclaim state left by a crashed holder. It is the
// recovery path for a segment whose owner died without closing it.
func (s *Segment[T]) ForceOwnership() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cleanError("force ownership", s.key, ErrClosed)
	}
	if err := s.lock.ForceOwnership(); err != nil {
		return cleanError("force ownership", s.key, err)
	}
	s.owner = true
	s.metrics.record(eventTakeover)
	return nil
}

// Close detaches the mapping. Owner handles then mark the segment for
// removal and destroy the lock. Every step is attempted; failures are logged
// and returned joined. Close is idempotent and waits for in-flight reads and
// writes of this handle.
func (s *Segment[T]) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.teardown()
	})
	return s.closeErr
}

func (s *Segment[T]) teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.registry.untrack(s.regName)
	s.closed = true
	internalLogger.tracef("dropping shared memory with id %d", s.id)

	var errs []error
	fail := func(step string, err error) {
		s.metrics.record(eventTeardownError)
		internalLogger.errorf("%s failed for segment id %d key %d: %v", step, s.id, s.key, err)
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}

	if err := s.platform.Detach(s.mem); err != nil {
		fail("detach", err)
	}
	s.mem, s.ptr = nil, nil

	if s.owner {
		switch err := s.platform.Remove(s.id); {
		case err == nil:
			s.metrics.record(eventRemoved)
		case errors.Is(err, shm.ErrNotExist):
			internalLogger.debugf("segment id %d already removed", s.id)
		default:
			fail("mark for removal", err)
		}
		if d, ok := s.lock.(Destroyer); ok {
			if err := d.Destroy(); err != nil {
				fail("destroy lock", err)
			}
		}
	}
	if c, ok := s.lock.(io.Closer); ok {
		if err := c.Close(); err != nil {
			fail("close lock", err)
		}
	}
	return errors.Join(errs...)
}

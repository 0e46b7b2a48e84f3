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

import "context"

// Builder assembles the arguments of New fluently.
//
//	seg, err := cortex.NewBuilder(Counter{}).
//		Key(4242).
//		Backend(semaphore.New(semaphore.Settings{})).
//		Build(ctx)
type Builder[T any] struct {
	data    T
	key     *int32
	force   bool
	backend Backend
	opts    *Options
}

// NewBuilder starts a builder for a segment initialised with data.
func NewBuilder[T any](data T) *Builder[T] {
	return &Builder[T]{data: data}
}

// Key sets an explicit key. Without it a key is generated.
func (b *Builder[T]) Key(key int32) *Builder[T] {
	b.key = &key
	return b
}

// ForceOwnership allows taking over an existing segment under the explicit key.
func (b *Builder[T]) ForceOwnership(force bool) *Builder[T] {
	b.force = force
	return b
}

// Backend sets the lock backend.
func (b *Builder[T]) Backend(backend Backend) *Builder[T] {
	b.backend = backend
	return b
}

// Options sets instrumentation and tracking options.
func (b *Builder[T]) Options(opts *Options) *Builder[T] {
	b.opts = opts
	return b
}

// Build calls New with the collected configuration.
func (b *Builder[T]) Build(ctx context.Context) (*Segment[T], error) {
	return New(ctx, b.key, b.data, b.force, b.backend, b.opts)
}

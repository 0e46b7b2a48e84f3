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
	"io"
	"strconv"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry tracks live segment handles of this process so they can be torn
// down together, e.g. from a signal handler.
type Registry struct {
	handles cmap.ConcurrentMap[string, io.Closer]
	seq     atomic.Uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: cmap.New[io.Closer]()}
}

func (r *Registry) track(key int32, c io.Closer) string {
	if r == nil {
		return ""
	}
	name := strconv.FormatInt(int64(key), 10) + "#" + strconv.FormatUint(r.seq.Add(1), 10)
	r.handles.Set(name, c)
	return name
}

func (r *Registry) untrack(name string) {
	if r == nil || name == "" {
		return
	}
	r.handles.Remove(name)
}

// Len returns the number of handles not yet closed.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.handles.Count()
}

// CloseAll closes every tracked handle and returns the joined failures.
func (r *Registry) CloseAll() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, name := range r.handles.Keys() {
		c, ok := r.handles.Pop(name)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

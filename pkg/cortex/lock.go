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

// Backend creates and attaches Lock instances keyed like the segment they
// protect. Backend-specific settings are carried by the Backend value.
type Backend interface {
	// New creates the lock for key. It fails if the lock cannot be created.
	New(key int32) (Lock, error)
	// Attach joins an existing lock for key. It fails if none exists.
	Attach(key int32) (Lock, error)
}

// Lock is the mutual-exclusion contract a segment depends on.
//
// ReadLock and WriteLock may share one implementation: a segment only needs
// exclusion against every other acquirer, in this and other processes.
// Acquisition blocks without timeout.
type Lock interface {
	// ForceOwnership claims the lock for a handle taking over a segment and
	// resets any state a crashed holder may have left.
	ForceOwnership() error
	ReadLock() error
	WriteLock() error
	// Release ends the exclusive section taken by ReadLock or WriteLock.
	Release() error
}

// Destroyer is implemented by locks backed by an OS object that outlives the
// process. Owner handles call Destroy during teardown.
type Destroyer interface {
	Destroy() error
}

//go:build !(linux && (amd64 || arm64))

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

// Lock is unavailable on this platform.
type Lock struct{}

func create(int32, Settings) (*Lock, error) { return nil, ErrUnsupported }
func open(int32, Settings) (*Lock, error)   { return nil, ErrUnsupported }

func (*Lock) ForceOwnership() error { return ErrUnsupported }
func (*Lock) ReadLock() error       { return ErrUnsupported }
func (*Lock) WriteLock() error      { return ErrUnsupported }
func (*Lock) Release() error        { return ErrUnsupported }
func (*Lock) Destroy() error        { return ErrUnsupported }
func (*Lock) Value() (int, error)   { return 0, ErrUnsupported }

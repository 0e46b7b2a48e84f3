//go:build !linux

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

package shm

var defaultPlatform Platform = unsupported{}

type unsupported struct{}

func (unsupported) Create(int32, int) (int, error) { return -1, ErrUnsupported }
func (unsupported) Lookup(int32) (int, error)      { return -1, ErrUnsupported }
func (unsupported) Attach(int) ([]byte, error)     { return nil, ErrUnsupported }
func (unsupported) Detach([]byte) error            { return ErrUnsupported }
func (unsupported) Remove(int) error               { return ErrUnsupported }
func (unsupported) Stat(int) (Stat, error)         { return Stat{}, ErrUnsupported }

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
	"fmt"
	"reflect"
)

// valueSize returns the byte size of T after checking that T can be copied
// bytewise into another address space.
func valueSize[T any]() (int, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if err := checkPointerFree(t); err != nil {
		return 0, err
	}
	if t.Size() == 0 {
		return 0, fmt.Errorf("%w: %s has zero size", ErrInvalidType, t)
	}
	return int(t.Size()), nil
}

func checkPointerFree(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		if err := checkPointerFree(t.Elem()); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		return nil
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := checkPointerFree(f.Type); err != nil {
				return fmt.Errorf("%s.%s: %w", t, f.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s holds a %s", ErrInvalidType, t, t.Kind())
	}
}

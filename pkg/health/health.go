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

// Package health provides liveness and readiness checks for a cortex segment
// key, ready to be served by a healthcheck.Handler.
package health

import (
	"errors"
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/cortex/pkg/cortex"
)

// ErrCreatorGone reports a segment whose creating process has exited.
var ErrCreatorGone = errors.New("health: segment creator is no longer running")

// Inspector reports the state of the segment under key.
type Inspector func(key int32) (cortex.SegmentInfo, error)

func defaultInspector(key int32) (cortex.SegmentInfo, error) {
	return cortex.Inspect(key, nil)
}

// SegmentExists fails when no segment is published under key.
func SegmentExists(key int32, inspect Inspector) healthcheck.Check {
	if inspect == nil {
		inspect = defaultInspector
	}
	return func() error {
		if _, err := inspect(key); err != nil {
			return fmt.Errorf("segment key %d: %w", key, err)
		}
		return nil
	}
}

// CreatorAlive fails when the segment under key outlived the process that
// created it, the usual sign that a takeover is needed.
func CreatorAlive(key int32, inspect Inspector) healthcheck.Check {
	if inspect == nil {
		inspect = defaultInspector
	}
	return func() error {
		info, err := inspect(key)
		if err != nil {
			return fmt.Errorf("segment key %d: %w", key, err)
		}
		if !info.CreatorAlive {
			return fmt.Errorf("segment key %d created by pid %d: %w", key, info.CreatorPID, ErrCreatorGone)
		}
		return nil
	}
}

// NewHandler serves /live from SegmentExists and /ready from CreatorAlive.
func NewHandler(key int32, inspect Inspector) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck(fmt.Sprintf("segment-%d", key), SegmentExists(key, inspect))
	h.AddReadinessCheck(fmt.Sprintf("segment-%d-creator", key), CreatorAlive(key, inspect))
	return h
}

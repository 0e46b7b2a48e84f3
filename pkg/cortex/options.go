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
	"math/rand"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/cortex/internal/shm"
)

const (
	// MaxKeyAttempts bounds how many generated keys New tries before giving up.
	MaxKeyAttempts = 20

	instrumentationName = "github.com/srediag/cortex"

	// privateKey is IPC_PRIVATE.
	privateKey int32 = 0
)

// Options tunes segment creation and attach. A nil *Options uses defaults.
type Options struct {
	// Tracer records spans around New and Attach. Defaults to a noop tracer.
	Tracer trace.Tracer
	// Meter records lock wait time. Defaults to a noop meter.
	Meter metric.Meter
	// Metrics counts segment lifecycle events. May be nil.
	Metrics *Metrics
	// Registry tracks the handle until it is closed. May be nil.
	Registry *Registry

	platform shm.Platform
	keygen   func() int32
}

// resolved is the Options with every default filled in.
type resolved struct {
	tracer   trace.Tracer
	lockWait metric.Float64Histogram
	metrics  *Metrics
	registry *Registry
	platform shm.Platform
	keygen   func() int32
}

func (o *Options) resolve() *resolved {
	if o == nil {
		o = &Options{}
	}
	r := &resolved{
		tracer:   o.Tracer,
		metrics:  o.Metrics,
		registry: o.Registry,
		platform: o.platform,
		keygen:   o.keygen,
	}
	if r.tracer == nil {
		r.tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	meter := o.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	h, err := meter.Float64Histogram("cortex.lock.wait",
		metric.WithDescription("Time spent waiting for the segment lock."),
		metric.WithUnit("s"))
	if err != nil {
		internalLogger.warnf("create lock wait histogram: %v", err)
		h, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("cortex.lock.wait")
	}
	r.lockWait = h
	if r.platform == nil {
		r.platform = shm.Default()
	}
	if r.keygen == nil {
		r.keygen = randomKey
	}
	return r
}

// randomKey returns a positive key. Zero is IPC_PRIVATE and never names a
// shared segment.
func randomKey() int32 {
	for {
		if k := rand.Int31(); k != privateKey {
			return k
		}
	}
}

// Key is a convenience for passing an explicit key to New.
func Key(k int32) *int32 {
	return &k
}

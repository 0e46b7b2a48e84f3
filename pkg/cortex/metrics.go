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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts segment lifecycle events. The zero of *Metrics (nil)
// records nothing.
type Metrics struct {
	created        prometheus.Counter
	attached       prometheus.Counter
	takeovers      prometheus.Counter
	collisions     prometheus.Counter
	removed        prometheus.Counter
	teardownErrors prometheus.Counter
}

// NewMetrics builds the lifecycle counters and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		created:        counter("segments_created_total", "Segments created by this process."),
		attached:       counter("segments_attached_total", "Existing segments attached by this process."),
		takeovers:      counter("takeovers_total", "Segments whose ownership was forced by this process."),
		collisions:     counter("key_collisions_total", "Exclusive creations that found the key in use."),
		removed:        counter("segments_removed_total", "Segments marked for removal by an owner handle."),
		teardownErrors: counter("teardown_errors_total", "Failed teardown steps."),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.created, m.attached, m.takeovers, m.collisions, m.removed, m.teardownErrors}
}

type event int

const (
	eventCreated event = iota
	eventAttached
	eventTakeover
	eventCollision
	eventRemoved
	eventTeardownError
)

func (m *Metrics) record(e event) {
	if m == nil {
		return
	}
	switch e {
	case eventCreated:
		m.created.Inc()
	case eventAttached:
		m.attached.Inc()
	case eventTakeover:
		m.takeovers.Inc()
	case eventCollision:
		m.collisions.Inc()
	case eventRemoved:
		m.removed.Inc()
	case eventTeardownError:
		m.teardownErrors.Inc()
	}
}

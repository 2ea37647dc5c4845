// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edfengine

import "sync"

// SignalChannelSpec describes one channel's shape for SignalSink.Init.
type SignalChannelSpec struct {
	SamplingRate    float64
	CapacitySamples int
}

// SignalSink is the optional zero-copy cross-thread transport the host
// application may supply in addition to the engine's private SignalCache
// (spec §6); the engine writes every decoded chunk to both. Implementations may be backed by process-local
// memory or shared memory; the core never assumes ownership of the
// backing storage. Writers (the engine) and readers (the consumer)
// coordinate via the per-channel UpdatedRange window: writes are
// append-only within a range, and SetUpdatedRange publishes the new
// bound only after the write it describes is complete, so a reader never
// observes a partially written sample region.
type SignalSink interface {
	Init(channels []SignalChannelSpec) (handle any, err error)
	WriteRange(channel int, rng TimeRange, samples []float64) error
	ReadRange(channel int, rng TimeRange) ([]float64, error)
	SetUpdatedRange(channel int, rng TimeRange) error
}

// MemorySink is the default in-process SignalSink, used when the host
// application has no shared-memory transport to offer. It is safe for
// concurrent use by one writer and many readers.
type MemorySink struct {
	mu      sync.RWMutex
	caps    []int
	rates   []float64
	buffers [][]float64
	updated []TimeRange
}

// NewMemorySink creates a SignalSink backed by ordinary process memory.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Init(channels []SignalChannelSpec) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.caps = make([]int, len(channels))
	m.rates = make([]float64, len(channels))
	m.buffers = make([][]float64, len(channels))
	m.updated = make([]TimeRange, len(channels))

	for i, ch := range channels {
		m.caps[i] = ch.CapacitySamples
		m.rates[i] = ch.SamplingRate
		m.buffers[i] = make([]float64, ch.CapacitySamples)
	}
	return m, nil
}

func (m *MemorySink) WriteRange(channel int, rng TimeRange, samples []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if channel < 0 || channel >= len(m.buffers) {
		return newErr(ErrKindOutOfRange, "channel index out of range", nil)
	}

	rate := m.rates[channel]
	offset := roundSamples(rng.Start, rate)
	buf := m.buffers[channel]

	for i, v := range samples {
		idx := offset + i
		if idx < 0 || idx >= len(buf) {
			continue
		}
		buf[idx] = v
	}
	return nil
}

func (m *MemorySink) ReadRange(channel int, rng TimeRange) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if channel < 0 || channel >= len(m.buffers) {
		return nil, newErr(ErrKindOutOfRange, "channel index out of range", nil)
	}

	rate := m.rates[channel]
	lo := roundSamples(rng.Start, rate)
	hi := roundSamples(rng.End, rate)
	buf := m.buffers[channel]

	if lo < 0 {
		lo = 0
	}
	if hi > len(buf) {
		hi = len(buf)
	}
	if lo > hi {
		lo = hi
	}

	out := make([]float64, hi-lo)
	copy(out, buf[lo:hi])
	return out, nil
}

func (m *MemorySink) SetUpdatedRange(channel int, rng TimeRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if channel < 0 || channel >= len(m.updated) {
		return newErr(ErrKindOutOfRange, "channel index out of range", nil)
	}
	m.updated[channel] = rng
	return nil
}

// UpdatedRange returns the most recently published range for channel.
func (m *MemorySink) UpdatedRange(channel int) TimeRange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if channel < 0 || channel >= len(m.updated) {
		return TimeRange{}
	}
	return m.updated[channel]
}

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edfengine

import (
	"math"
	"sort"
	"sync"
)

// GapModel maintains the sorted set of data-record gaps and converts
// between recording time (with gaps) and cache time (contiguous), per
// spec §4.4. The gap dataTime convention is data/cache time, not
// recording time: gaps are keyed by the cache-time position at which
// the discontinuity starts.
type GapModel struct {
	mu                 sync.RWMutex
	entries            []GapEntry // sorted by DataTime
	totalRecordingLen  float64
}

// NewGapModel creates an empty GapModel bounded by totalRecordingLength
// (recording time), used to validate range arguments.
func NewGapModel(totalRecordingLength float64) *GapModel {
	return &GapModel{totalRecordingLen: totalRecordingLength}
}

// SetTotalRecordingLength updates the bound used for out-of-range checks,
// e.g. once the discontinuous probe has determined the true recording
// length (spec §4.6 "Discontinuous probe").
func (g *GapModel) SetTotalRecordingLength(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.totalRecordingLen = v
}

func (g *GapModel) TotalRecordingLength() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.totalRecordingLen
}

// AddGap inserts a gap, idempotent by DataTime, keeping entries sorted.
func (g *GapModel) AddGap(dataTime, duration float64) {
	if duration <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	idx := sort.Search(len(g.entries), func(i int) bool { return g.entries[i].DataTime >= dataTime })
	if idx < len(g.entries) && g.entries[idx].DataTime == dataTime {
		g.entries[idx].GapDuration = duration
		return
	}

	g.entries = append(g.entries, GapEntry{})
	copy(g.entries[idx+1:], g.entries[idx:])
	g.entries[idx] = GapEntry{DataTime: dataTime, GapDuration: duration}
}

// All returns a copy of the current gap set, sorted by DataTime.
func (g *GapModel) All() []GapEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GapEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

// InRange returns the gaps overlapping the recording-time window
// [start, end), clipping partial overlaps to the window boundaries.
func (g *GapModel) InRange(start, end float64) []GapEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []GapEntry
	for _, e := range g.entries {
		gapStart := e.DataTime
		gapEnd := e.DataTime + e.GapDuration
		if gapEnd <= start || gapStart >= end {
			continue
		}
		clippedStart := math.Max(gapStart, start)
		clippedEnd := math.Min(gapEnd, end)
		out = append(out, GapEntry{DataTime: clippedStart, GapDuration: clippedEnd - clippedStart})
	}
	return out
}

// GapTimeBetween sums the durations of gaps whose DataTime falls within
// [start, end) of recording time.
func (g *GapModel) GapTimeBetween(start, end float64) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var total float64
	for _, e := range g.entries {
		if e.DataTime >= start && e.DataTime < end {
			total += e.GapDuration
		}
	}
	return total
}

// inBounds reports whether t is within [0, totalRecordingLength].
func (g *GapModel) inBounds(t float64) bool {
	return t >= 0 && t <= g.totalRecordingLen
}

// RecToCache converts recording time to cache time: t - gapTimeBetween(0, t).
// Returns an error wrapping ErrKindOutOfRange for t outside
// [0, totalRecordingLength].
func (g *GapModel) RecToCache(t float64) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.inBounds(t) {
		return 0, newErr(ErrKindOutOfRange, "recording time out of bounds", nil)
	}

	var elapsedGap float64
	for _, e := range g.entries {
		if e.DataTime < t {
			elapsedGap += e.GapDuration
		}
	}
	return t - elapsedGap, nil
}

// CacheToRec inverts RecToCache by walking the sorted gap entries: for
// each entry (g, d) with g < t, add d. Returns an error wrapping
// ErrKindOutOfRange if the resulting recording time would exceed the
// total recording length.
func (g *GapModel) CacheToRec(t float64) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if t < 0 {
		return 0, newErr(ErrKindOutOfRange, "cache time out of bounds", nil)
	}

	rec := t
	for _, e := range g.entries {
		if e.DataTime < t {
			rec += e.GapDuration
		} else {
			break
		}
	}

	if rec > g.totalRecordingLen {
		return 0, newErr(ErrKindOutOfRange, "cache time out of bounds", nil)
	}
	return rec, nil
}

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

// span is a contiguous cached range of samples for one channel, in cache
// time.
type span struct {
	start   float64
	end     float64
	samples []float64
}

// SignalCache owns per-channel contiguous sample buffers indexed by cache
// time. It is mutated only by the CacheEngine (spec §5); readers call
// AsPart concurrently with the engine inserting new spans, guarded by mu.
type SignalCache struct {
	mu       sync.RWMutex
	channels map[int][]span // sorted, non-overlapping spans per channel
	rates    map[int]float64
}

// NewSignalCache creates an empty cache. rates maps channel index to
// sampling rate (0 for annotation channels, which are never cached).
func NewSignalCache(rates map[int]float64) *SignalCache {
	return &SignalCache{
		channels: make(map[int][]span),
		rates:    rates,
	}
}

// Insert extends or merges newly loaded samples into channel c's cached
// spans. rng is in cache time. Overlapping writes to annotation channels
// (sampling rate 0) are no-ops, since annotation samples are never cached.
func (c *SignalCache) Insert(ch int, rng TimeRange, samples []float64) {
	if c.rates[ch] == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	spans := c.channels[ch]
	newSpan := span{start: rng.Start, end: rng.End, samples: samples}

	merged := make([]span, 0, len(spans)+1)
	inserted := false
	const mergeEps = 1e-9

	for _, s := range spans {
		if newSpan.end < s.start-mergeEps {
			if !inserted {
				merged = append(merged, newSpan)
				inserted = true
			}
			merged = append(merged, s)
			continue
		}
		if newSpan.start > s.end+mergeEps {
			merged = append(merged, s)
			continue
		}
		// Overlapping or adjacent: merge s into newSpan.
		newSpan = mergeSpans(newSpan, s, c.rates[ch])
	}
	if !inserted {
		merged = append(merged, newSpan)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].start < merged[j].start })
	c.channels[ch] = merged
}

// mergeSpans combines two overlapping or touching spans into one,
// preferring the newer span's samples where both cover the same time.
func mergeSpans(newer, older span, rate float64) span {
	start := math.Min(newer.start, older.start)
	end := math.Max(newer.end, older.end)
	n := roundSamples(end-start, rate)

	out := make([]float64, n)
	placeSpan(out, start, rate, older)
	placeSpan(out, start, rate, newer) // newer wins on overlap
	return span{start: start, end: end, samples: out}
}

func placeSpan(dst []float64, dstStart, rate float64, s span) {
	offset := roundSamples(s.start-dstStart, rate)
	for i, v := range s.samples {
		idx := offset + i
		if idx >= 0 && idx < len(dst) {
			dst[idx] = v
		}
	}
}

// AsPart slices cached samples for channel ch over rng (cache time). When a
// single cached span contains all of rng it returns rng and the samples;
// when rng is only partly cached, or not cached at all, it returns an
// empty range and nil. Partial overlaps are not sliced.
func (c *SignalCache) AsPart(ch int, rng TimeRange) (TimeRange, []float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate := c.rates[ch]
	for _, s := range c.channels[ch] {
		if s.start <= rng.Start && s.end >= rng.End {
			lo := roundSamples(rng.Start-s.start, rate)
			hi := roundSamples(rng.End-s.start, rate)
			if hi > len(s.samples) {
				hi = len(s.samples)
			}
			if lo < 0 {
				lo = 0
			}
			return rng, s.samples[lo:hi]
		}
	}
	return TimeRange{}, nil
}

// UpdatedRange returns the intersection of per-channel covered ranges:
// the latest start and earliest end across all non-annotation channels
// with at least one cached span.
func (c *SignalCache) UpdatedRange() (TimeRange, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		maxStart = math.Inf(-1)
		minEnd   = math.Inf(1)
		any      bool
	)

	for ch, spans := range c.channels {
		if c.rates[ch] == 0 || len(spans) == 0 {
			continue
		}
		// Only the outermost span matters for "updated range" in the
		// common single-span case; with multiple disjoint spans we use
		// the first/last, matching the whole-recording sweep's
		// monotonic growth from the start.
		first := spans[0]
		last := spans[len(spans)-1]
		if first.start > maxStart {
			maxStart = first.start
		}
		if last.end < minEnd {
			minEnd = last.end
		}
		any = true
	}

	if !any || maxStart > minEnd {
		return TimeRange{}, false
	}
	return TimeRange{Start: maxStart, End: minEnd}, true
}

// Covers reports whether rng (cache time) is fully contained within a
// single cached span for channel ch.
func (c *SignalCache) Covers(ch int, rng TimeRange) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.channels[ch] {
		if s.start <= rng.Start+1e-9 && s.end >= rng.End-1e-9 {
			return true
		}
	}
	return false
}

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edfengine_test

import (
	"testing"

	edf "github.com/OpenPSG/edfengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalCache_InsertAndAsPart(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0})
	c.Insert(0, edf.TimeRange{Start: 0, End: 4}, []float64{1, 2, 3, 4})

	rng, samples := c.AsPart(0, edf.TimeRange{Start: 1, End: 3})
	assert.Equal(t, edf.TimeRange{Start: 1, End: 3}, rng)
	assert.Equal(t, []float64{2, 3}, samples)
}

func TestSignalCache_AsPartMissReturnsEmpty(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0})
	c.Insert(0, edf.TimeRange{Start: 0, End: 2}, []float64{1, 2})

	rng, samples := c.AsPart(0, edf.TimeRange{Start: 5, End: 6})
	assert.Equal(t, edf.TimeRange{}, rng)
	assert.Nil(t, samples)
}

func TestSignalCache_InsertMergesAdjacentSpans(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0})
	c.Insert(0, edf.TimeRange{Start: 0, End: 2}, []float64{1, 2})
	c.Insert(0, edf.TimeRange{Start: 2, End: 4}, []float64{3, 4})

	require.True(t, c.Covers(0, edf.TimeRange{Start: 0, End: 4}))

	_, samples := c.AsPart(0, edf.TimeRange{Start: 0, End: 4})
	assert.Equal(t, []float64{1, 2, 3, 4}, samples)
}

func TestSignalCache_InsertNewerWinsOnOverlap(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0})
	c.Insert(0, edf.TimeRange{Start: 0, End: 3}, []float64{1, 2, 3})
	c.Insert(0, edf.TimeRange{Start: 1, End: 4}, []float64{20, 30, 40})

	_, samples := c.AsPart(0, edf.TimeRange{Start: 0, End: 4})
	assert.Equal(t, []float64{1, 20, 30, 40}, samples)
}

func TestSignalCache_AnnotationChannelInsertIsNoop(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{1: 0})
	c.Insert(1, edf.TimeRange{Start: 0, End: 2}, []float64{1, 2})

	assert.False(t, c.Covers(1, edf.TimeRange{Start: 0, End: 2}))
	rng, samples := c.AsPart(1, edf.TimeRange{Start: 0, End: 2})
	assert.Equal(t, edf.TimeRange{}, rng)
	assert.Nil(t, samples)
}

func TestSignalCache_UpdatedRange(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0, 1: 1.0})
	c.Insert(0, edf.TimeRange{Start: 0, End: 5}, make([]float64, 5))
	c.Insert(1, edf.TimeRange{Start: 0, End: 3}, make([]float64, 3))

	rng, ok := c.UpdatedRange()
	require.True(t, ok)
	assert.Equal(t, edf.TimeRange{Start: 0, End: 3}, rng)
}

func TestSignalCache_UpdatedRangeEmptyWhenNothingCached(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0})
	_, ok := c.UpdatedRange()
	assert.False(t, ok)
}

func TestSignalCache_Covers(t *testing.T) {
	c := edf.NewSignalCache(map[int]float64{0: 1.0})
	c.Insert(0, edf.TimeRange{Start: 0, End: 2}, []float64{1, 2})

	assert.True(t, c.Covers(0, edf.TimeRange{Start: 0, End: 2}))
	assert.False(t, c.Covers(0, edf.TimeRange{Start: 0, End: 3}))
}

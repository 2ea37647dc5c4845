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

func TestGapModel_AddGapIdempotentByDataTime(t *testing.T) {
	g := edf.NewGapModel(10)
	g.AddGap(2.0, 1.0)
	g.AddGap(2.0, 1.5) // same dataTime, replaces duration

	entries := g.All()
	require.Len(t, entries, 1)
	assert.Equal(t, 1.5, entries[0].GapDuration)
}

func TestGapModel_RecToCacheAndBack(t *testing.T) {
	// One gap of 1s at cache time 2.0: recording time [0,2) maps 1:1,
	// recording time [3,4) maps to cache time [2,3).
	g := edf.NewGapModel(4)
	g.AddGap(2.0, 1.0)

	cache, err := g.RecToCache(1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cache)

	cache, err = g.RecToCache(3.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cache)

	rec, err := g.CacheToRec(2.5)
	require.NoError(t, err)
	assert.Equal(t, 3.5, rec)
}

func TestGapModel_RoundTripOutsideGap(t *testing.T) {
	g := edf.NewGapModel(10)
	g.AddGap(3.0, 2.0)

	for _, rec := range []float64{0, 1.5, 2.9, 5.0, 7.5, 10.0} {
		cache, err := g.RecToCache(rec)
		require.NoError(t, err)
		back, err := g.CacheToRec(cache)
		require.NoError(t, err)
		assert.InDelta(t, rec, back, 1e-9, "round trip for recording time %v", rec)
	}
}

func TestGapModel_OutOfRange(t *testing.T) {
	g := edf.NewGapModel(10)

	_, err := g.RecToCache(-1)
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindOutOfRange, edf.KindOf(err))

	_, err = g.RecToCache(11)
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindOutOfRange, edf.KindOf(err))
}

func TestGapModel_InRangeClipsPartialOverlap(t *testing.T) {
	g := edf.NewGapModel(10)
	g.AddGap(2.0, 3.0) // gap spans [2,5)

	clipped := g.InRange(3.0, 10.0)
	require.Len(t, clipped, 1)
	assert.Equal(t, 3.0, clipped[0].DataTime)
	assert.Equal(t, 2.0, clipped[0].GapDuration)
}

func TestGapModel_GapTimeBetween(t *testing.T) {
	g := edf.NewGapModel(10)
	g.AddGap(2.0, 1.0)
	g.AddGap(5.0, 0.5)

	assert.Equal(t, 1.0, g.GapTimeBetween(0, 3.0))
	assert.Equal(t, 1.5, g.GapTimeBetween(0, 6.0))
	assert.Equal(t, 0.5, g.GapTimeBetween(3.0, 6.0))
}

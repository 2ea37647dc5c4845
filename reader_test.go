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
	"context"
	"testing"

	edf "github.com/OpenPSG/edfengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_OpenTwiceRejected(t *testing.T) {
	buf := twoChannelEDF()

	r := edf.NewReader()
	_, err := r.Open(newMemByteSource(buf))
	require.NoError(t, err)

	_, err = r.Open(newMemByteSource(buf))
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindAlreadyInitialised, edf.KindOf(err))
}

func TestReader_SetupCacheBeforeOpenRejected(t *testing.T) {
	r := edf.NewReader()
	_, err := r.SetupCache(edf.DefaultConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindNotInitialised, edf.KindOf(err))
}

func TestReader_SetupCacheTwiceRejected(t *testing.T) {
	buf := twoChannelEDF()

	r := edf.NewReader()
	_, err := r.Open(newMemByteSource(buf))
	require.NoError(t, err)

	_, err = r.SetupCache(fastTestConfig(), nil)
	require.NoError(t, err)

	_, err = r.SetupCache(fastTestConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindAlreadyInitialised, edf.KindOf(err))
}

func TestReader_GetSignalsBeforeSetupCacheRejected(t *testing.T) {
	buf := twoChannelEDF()

	r := edf.NewReader()
	_, err := r.Open(newMemByteSource(buf))
	require.NoError(t, err)

	_, err = r.GetSignals(context.Background(), edf.TimeRange{Start: 0, End: 1}, edf.ChannelFilter{})
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindNotInitialised, edf.KindOf(err))
}

func TestReader_ReleaseIsIdempotent(t *testing.T) {
	buf := twoChannelEDF()

	r := edf.NewReader()
	_, err := r.Open(newMemByteSource(buf))
	require.NoError(t, err)

	_, err = r.SetupCache(fastTestConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Release())
	require.NoError(t, r.Release())
}

func TestReader_ChannelFilterIncludeExclude(t *testing.T) {
	signals := []fixtureSignal{
		{label: "EEG A", physicalMin: -1, physicalMax: 1, digitalMin: -100, digitalMax: 100, sampleCount: 2},
		{label: "EEG B", physicalMin: -1, physicalMax: 1, digitalMin: -100, digitalMax: 100, sampleCount: 2},
		{label: "EEG C", physicalMin: -1, physicalMax: 1, digitalMin: -100, digitalMax: 100, sampleCount: 2},
	}
	records := []recordData{{digital: map[int][]int{0: {1, 1}, 1: {2, 2}, 2: {3, 3}}}}
	buf := buildEDF(false, false, 1.0, signals, records)

	r := edf.NewReader()
	_, err := r.Open(newMemByteSource(buf))
	require.NoError(t, err)
	_, err = r.SetupCache(fastTestConfig(), nil)
	require.NoError(t, err)

	res, err := r.GetSignals(context.Background(), edf.TimeRange{Start: 0, End: 1}, edf.ChannelFilter{Include: []int{0, 2}})
	require.NoError(t, err)
	assert.Contains(t, res.Signals, 0)
	assert.Contains(t, res.Signals, 2)
	assert.NotContains(t, res.Signals, 1)

	res, err = r.GetSignals(context.Background(), edf.TimeRange{Start: 0, End: 1}, edf.ChannelFilter{Exclude: []int{1}})
	require.NoError(t, err)
	assert.Contains(t, res.Signals, 0)
	assert.Contains(t, res.Signals, 2)
	assert.NotContains(t, res.Signals, 1)

	require.NoError(t, r.Release())
}

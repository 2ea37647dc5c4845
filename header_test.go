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

func twoChannelEDF() []byte {
	signals := []fixtureSignal{
		{label: "EEG Fpz-Cz", physicalMin: -100, physicalMax: 100, digitalMin: -2048, digitalMax: 2047, sampleCount: 256},
		{label: "EEG Pz-Oz", physicalMin: -100, physicalMax: 100, digitalMin: -2048, digitalMax: 2047, sampleCount: 256},
	}
	records := make([]recordData, 10)
	for r := range records {
		records[r] = recordData{digital: map[int][]int{
			0: make([]int, 256),
			1: make([]int, 256),
		}}
	}
	return buildEDF(false, false, 1.0, signals, records)
}

func TestParseHeader_Continuous(t *testing.T) {
	buf := twoChannelEDF()

	hdr, signals, err := edf.ParseHeader(buf)
	require.NoError(t, err)

	assert.Equal(t, edf.FormatEDF, hdr.DataFormat)
	assert.False(t, hdr.IsPlus)
	assert.False(t, hdr.Discontinuous)
	assert.Equal(t, 10, hdr.DataRecordCount)
	assert.Equal(t, 1.0, hdr.DataRecordDuration)
	assert.Equal(t, 2, hdr.SignalCount)
	assert.Equal(t, 256+2*256, hdr.HeaderRecordBytes)
	assert.Equal(t, 2*256*2, hdr.RecordByteSize)

	require.Len(t, signals, 2)
	assert.Equal(t, "EEG Fpz-Cz", signals[0].Label)
	assert.InDelta(t, 200.0/4095.0, signals[0].UnitsPerBit(), 1e-9)
	assert.Equal(t, 256.0, signals[0].SamplingRate())
	assert.False(t, signals[0].IsAnnotationChannel())
}

func TestParseHeader_MissingSignalCount(t *testing.T) {
	buf := twoChannelEDF()
	// Blank out the signalCount field (offset 252, 4 bytes).
	copy(buf[252:256], "    ")

	_, _, err := edf.ParseHeader(buf)
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindMalformedHeader, edf.KindOf(err))
}

func TestParseHeader_ZeroDataRecordCount(t *testing.T) {
	buf := twoChannelEDF()
	copy(buf[236:244], "0       ")

	_, _, err := edf.ParseHeader(buf)
	require.Error(t, err)
	assert.Equal(t, edf.ErrKindMalformedHeader, edf.KindOf(err))
}

func TestParseHeader_AnnotationChannelDetectedCaseInsensitive(t *testing.T) {
	signals := []fixtureSignal{
		{label: "EEG Fpz-Cz", physicalMin: -100, physicalMax: 100, digitalMin: -2048, digitalMax: 2047, sampleCount: 256},
		{label: "edf annotations", physicalMin: -1, physicalMax: 1, digitalMin: -32768, digitalMax: 32767, sampleCount: 16},
	}
	records := []recordData{{
		digital: map[int][]int{0: make([]int, 256)},
		tal:     map[int][]byte{1: talBytes(0)},
	}}
	buf := buildEDF(true, false, 1.0, signals, records)

	hdr, specs, err := edf.ParseHeader(buf)
	require.NoError(t, err)
	assert.True(t, hdr.IsPlus)
	assert.True(t, specs[1].IsAnnotationChannel())
	assert.Equal(t, 0.0, specs[1].SamplingRate())
}

func TestParseHeader_BDFSignature(t *testing.T) {
	signals := []fixtureSignal{
		{label: "EEG", physicalMin: -100, physicalMax: 100, digitalMin: -8388608, digitalMax: 8388607, sampleCount: 10},
	}
	records := []recordData{{digital: map[int][]int{0: make([]int, 10)}}}
	buf := buildRecording(edf.FormatBDF, false, false, 1.0, signals, records)

	hdr, _, err := edf.ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, edf.FormatBDF, hdr.DataFormat)
	assert.Equal(t, 3, hdr.DataFormat.BytesPerSample())
}

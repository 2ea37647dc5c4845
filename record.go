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
	"fmt"
	"log/slog"
)

// recordULPs is the ULP tolerance used when comparing a parsed TAL
// record-start onset against its expected position, per spec Design
// Notes ("use an ULP-based comparator, not direct equality").
const recordULPs = 16

// DecodedRecords is the output of RecordCodec.DecodeRecords: one
// concatenated physical-sample slice per channel, the annotations
// observed across the buffer, and any newly discovered gaps.
type DecodedRecords struct {
	Samples      map[int][]float64 // channel index -> physical samples (absent for annotation channels)
	Annotations  []Annotation
	Gaps         []GapEntry
	EndPriorGap  float64 // priorGap after accounting for gaps discovered in this buffer
}

// DecodeRecords decodes nRecords contiguous data records starting at
// absolute record index r0 from buf, per spec §4.3. priorGap is the total
// gap time (recording time) preceding the buffer, used only to compute
// expected record starts for discontinuity detection.
func DecodeRecords(hdr *Header, signals []SignalSpec, buf []byte, r0, nRecords int, priorGap float64) (*DecodedRecords, error) {
	if hdr.DataRecordDuration <= 0 {
		return nil, newErr(ErrKindMalformedHeader, "dataRecordDuration must be > 0", nil)
	}

	want := nRecords * hdr.RecordByteSize
	if len(buf) != want {
		return nil, newErr(ErrKindShortRead, fmt.Sprintf("expected %d bytes for %d records, got %d", want, nRecords, len(buf)), nil)
	}

	bps := hdr.DataFormat.BytesPerSample()

	out := &DecodedRecords{Samples: make(map[int][]float64)}
	for c, sig := range signals {
		if !sig.isAnnotationChannel {
			out.Samples[c] = make([]float64, 0, nRecords*sig.SampleCount)
		}
	}

	var startCorrection bool

	for r := 0; r < nRecords; r++ {
		absIdx := r0 + r
		expected := float64(absIdx)*hdr.DataRecordDuration + priorGap

		recOff := r * hdr.RecordByteSize
		chOff := 0

		for c := range signals {
			sig := &signals[c]
			n := sig.SampleCount
			byteLen := n * bps
			sub := buf[recOff+chOff : recOff+chOff+byteLen]
			chOff += byteLen

			if sig.isAnnotationChannel {
				parsed, err := ParseTAL(sub)
				if err != nil {
					return nil, err
				}

				if hdr.Discontinuous {
					if parsed.RecordStart > expected && !ulpEqual(parsed.RecordStart, expected, recordULPs) {
						gapDur := parsed.RecordStart - expected
						gap := GapEntry{DataTime: float64(absIdx) * hdr.DataRecordDuration, GapDuration: gapDur}
						out.Gaps = append(out.Gaps, gap)
						priorGap += gapDur
					} else if parsed.RecordStart < expected && !ulpEqual(parsed.RecordStart, expected, recordULPs) {
						if !startCorrection {
							slog.Warn("record start precedes expected position, possible overlap or corruption",
								slog.Int("record", absIdx),
								slog.Float64("recordStart", parsed.RecordStart),
								slog.Float64("expected", expected))
							startCorrection = true
						}
					}
				}

				out.Annotations = append(out.Annotations, parsed.Annotations()...)
				continue
			}

			samples := decodeChannelSamples(sub, bps, sig)
			out.Samples[c] = append(out.Samples[c], samples...)
		}
	}

	out.EndPriorGap = priorGap
	return out, nil
}

// decodeChannelSamples reads n little-endian, two's-complement samples of
// byteWidth bytes and converts each to physical units, per spec §4.3.
func decodeChannelSamples(buf []byte, byteWidth int, sig *SignalSpec) []float64 {
	n := len(buf) / byteWidth
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		digital := decodeSigned(buf[i*byteWidth:(i+1)*byteWidth], byteWidth)
		out[i] = sig.unitsPerBit * (float64(digital) + sig.digitalOffset)
	}
	return out
}

// decodeSigned decodes a little-endian, two's-complement integer of
// byteWidth bytes (2 for EDF, 3 for BDF), sign-extended to int64, per
// spec §8 scenario S6.
func decodeSigned(b []byte, byteWidth int) int64 {
	var v uint32
	for i := 0; i < byteWidth; i++ {
		v |= uint32(b[i]) << (8 * i)
	}

	signBit := uint32(1) << (8*byteWidth - 1)
	if v&signBit != 0 {
		v |= ^uint32(0) << (8 * byteWidth)
	}
	return int64(int32(v))
}

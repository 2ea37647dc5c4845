// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edfengine reads EDF, EDF+ and BDF/BDF+ biosignal recordings from
// a random-access byte source and exposes time-ranged physical signals,
// annotations and data-gap metadata through a progressive, concurrent
// range cache.
package edfengine

import "time"

// DataFormat identifies the on-disk variant of a recording.
type DataFormat string

const (
	FormatEDF  DataFormat = "edf"
	FormatEDFPlus DataFormat = "edf+"
	FormatBDF  DataFormat = "bdf"
	FormatBDFPlus DataFormat = "bdf+"
)

// BytesPerSample returns the on-disk sample width for the format: 2 bytes
// for EDF, 3 bytes for BDF.
func (f DataFormat) BytesPerSample() int {
	switch f {
	case FormatBDF, FormatBDFPlus:
		return 3
	default:
		return 2
	}
}

// Header describes the fixed-width ASCII EDF/BDF header. It is immutable
// once parsed by ParseHeader.
type Header struct {
	DataFormat      DataFormat
	IsPlus          bool
	Discontinuous   bool
	PatientID       string
	LocalRecordingID string
	RecordingDate   *time.Time

	HeaderRecordBytes  int
	DataRecordCount    int
	DataRecordDuration float64 // seconds
	SignalCount        int
	RecordByteSize     int
	Reserved           string
}

// SignalSpec describes one channel's calibration and layout, one per data
// record. Immutable once parsed.
type SignalSpec struct {
	Label        string
	Transducer   string
	PhysicalUnit string
	Prefiltering string
	Reserved     string

	DigitalMin  int
	DigitalMax  int
	PhysicalMin float64
	PhysicalMax float64

	SampleCount int // samples per data record

	unitsPerBit   float64
	digitalOffset float64
	samplingRate  float64

	isAnnotationChannel bool
}

// UnitsPerBit is the calibration scale: (physicalMax-physicalMin)/(digitalMax-digitalMin).
func (s *SignalSpec) UnitsPerBit() float64 { return s.unitsPerBit }

// DigitalOffset is physicalMax/unitsPerBit - digitalMax.
func (s *SignalSpec) DigitalOffset() float64 { return s.digitalOffset }

// SamplingRate is SampleCount / dataRecordDuration, in Hz. Zero for
// annotation channels.
func (s *SignalSpec) SamplingRate() float64 { return s.samplingRate }

// IsAnnotationChannel reports whether this channel carries a Timestamped
// Annotation List rather than physical samples.
func (s *SignalSpec) IsAnnotationChannel() bool { return s.isAnnotationChannel }

// deriveCalibration computes the derived fields from the parsed bounds and
// the recording's data record duration. isPlus/label determine whether this
// is an annotation channel.
func (s *SignalSpec) deriveCalibration(isPlus bool, dataRecordDuration float64) {
	s.isAnnotationChannel = isPlus && isAnnotationLabel(s.Label)

	digRange := float64(s.DigitalMax - s.DigitalMin)
	if digRange == 0 {
		s.unitsPerBit = 0
	} else {
		s.unitsPerBit = (s.PhysicalMax - s.PhysicalMin) / digRange
	}

	if s.unitsPerBit != 0 {
		s.digitalOffset = s.PhysicalMax/s.unitsPerBit - float64(s.DigitalMax)
	}

	if s.isAnnotationChannel {
		s.samplingRate = 0
	} else if dataRecordDuration > 0 {
		s.samplingRate = float64(s.SampleCount) / dataRecordDuration
	}
}

// isAnnotationLabel reports whether label names an EDF+/BDF+ annotation
// channel. The EDF+ specification mandates an exact, case-sensitive match
// against "EDF Annotations"; conformant BDF+ writers use "BDF Annotations".
// We match case-insensitively for tolerance of non-conformant writers, per
// spec Design Note on the duplicated detection logic.
func isAnnotationLabel(label string) bool {
	switch trimLower(label) {
	case "edf annotations", "bdf annotations":
		return true
	default:
		return false
	}
}

// Annotation is a single TAL-derived event in recording time.
type Annotation struct {
	Start    float64 // seconds, recording time
	Duration float64 // seconds, >= 0
	Label    string
	Channels []string
	Class    string // defaults to "event"
}

// GapEntry records a single discontinuity. DataTime is expressed in cache
// time: the end of the contiguous data immediately preceding the gap.
type GapEntry struct {
	DataTime     float64
	GapDuration  float64
}

// ChannelFilter selects which channels a GetSignals call should return.
// Include wins over Exclude; channels named in neither are still returned
// unless Include is non-empty, in which case only the Include set is
// returned.
type ChannelFilter struct {
	Include []int
	Exclude []int
}

// applies reports whether channel index c passes the filter.
func (f ChannelFilter) applies(c int) bool {
	if len(f.Include) > 0 {
		for _, i := range f.Include {
			if i == c {
				return true
			}
		}
		return false
	}
	for _, e := range f.Exclude {
		if e == c {
			return false
		}
	}
	return true
}

// TimeRange is a half-open [Start, End) interval of seconds, in either
// recording time or cache time depending on context.
type TimeRange struct {
	Start float64
	End   float64
}

// SignalsResult is the response to a GetSignals request.
type SignalsResult struct {
	Signals     map[int][]float64 // channel index -> physical samples
	Annotations []Annotation
	Gaps        []GapEntry
	Range       TimeRange
}

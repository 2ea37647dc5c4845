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
	"strconv"
	"strings"
	"time"
)

// minHeaderLen is the fixed 256-byte fixed header block.
const minHeaderLen = 256

// signalBlockLen is the per-signal header block length.
const signalBlockLen = 256

// ParseHeader decodes the fixed-width ASCII EDF/BDF header from buf, per
// spec §4.1. buf must be at least 256*(signalCount+1) bytes, or
// ParseHeader returns ErrKindMalformedHeader; callers typically read the
// first 256 bytes to discover signalCount, then read the rest and call
// ParseHeader with the complete buffer.
func ParseHeader(buf []byte) (*Header, []SignalSpec, error) {
	if len(buf) < minHeaderLen {
		return nil, nil, newErr(ErrKindMalformedHeader, "buffer shorter than fixed header block", nil)
	}

	hdr := &Header{}

	format, err := parseDataFormat(buf[0:8])
	if err != nil {
		return nil, nil, newErr(ErrKindMalformedHeader, "unsupported data format", err)
	}

	hdr.PatientID = strings.TrimSpace(string(buf[8:88]))
	hdr.LocalRecordingID = strings.TrimSpace(string(buf[88:168]))

	if rd := parseStartTimestamp(buf[168:176], buf[176:184]); rd != nil {
		hdr.RecordingDate = rd
	}

	headerRecordBytes, err := strconv.Atoi(strings.TrimSpace(string(buf[184:192])))
	if err != nil {
		return nil, nil, newErr(ErrKindMalformedHeader, "headerRecordBytes", err)
	}
	hdr.HeaderRecordBytes = headerRecordBytes

	reserved := string(buf[192:236])
	hdr.Reserved = strings.TrimSpace(reserved)
	hdr.IsPlus, hdr.Discontinuous = parseReservedFlags(reserved)

	dataRecordCountStr := strings.TrimSpace(string(buf[236:244]))
	dataRecordCount, err := strconv.Atoi(dataRecordCountStr)
	if err != nil || dataRecordCount <= 0 {
		return nil, nil, newErr(ErrKindMalformedHeader, fmt.Sprintf("dataRecordCount %q must be a positive integer", dataRecordCountStr), err)
	}
	hdr.DataRecordCount = dataRecordCount

	durStr := strings.TrimSpace(string(buf[244:252]))
	dur, err := strconv.ParseFloat(durStr, 64)
	if err != nil || dur <= 0 {
		return nil, nil, newErr(ErrKindMalformedHeader, fmt.Sprintf("dataRecordDuration %q must be > 0", durStr), err)
	}
	hdr.DataRecordDuration = dur

	signalCountStr := strings.TrimSpace(string(buf[252:256]))
	signalCount, err := strconv.Atoi(signalCountStr)
	if err != nil || signalCount <= 0 {
		return nil, nil, newErr(ErrKindMalformedHeader, fmt.Sprintf("signalCount %q must be a positive integer", signalCountStr), err)
	}
	hdr.SignalCount = signalCount

	hdr.DataFormat = effectiveFormat(format, hdr.IsPlus)

	need := minHeaderLen + signalCount*signalBlockLen
	if len(buf) < need {
		return nil, nil, newErr(ErrKindMalformedHeader, fmt.Sprintf("buffer too short for %d signal headers (need %d bytes, got %d)", signalCount, need, len(buf)), nil)
	}

	signals, err := parseSignalSpecs(buf[minHeaderLen:need], signalCount, hdr.IsPlus, hdr.DataRecordDuration)
	if err != nil {
		return nil, nil, err
	}

	recordByteSize := 0
	bps := hdr.DataFormat.BytesPerSample()
	for i := range signals {
		recordByteSize += signals[i].SampleCount * bps
	}
	hdr.RecordByteSize = recordByteSize

	if expected := minHeaderLen + signalCount*signalBlockLen; hdr.HeaderRecordBytes != expected {
		slog.Warn("header byte count does not match parsed signal block count",
			slog.Int("headerRecordBytes", hdr.HeaderRecordBytes),
			slog.Int("expected", expected))
	}

	return hdr, signals, nil
}

// rawDataFormat is the wire-level tag before EDF+/BDF+ is folded in.
type rawDataFormat int

const (
	rawEDF rawDataFormat = iota
	rawBDF
)

func parseDataFormat(b []byte) (rawDataFormat, error) {
	if b[0] == 0xFF && strings.TrimSpace(string(b[1:8])) == "BIOSEMI" {
		return rawBDF, nil
	}
	if strings.TrimSpace(string(b)) == "0" {
		return rawEDF, nil
	}
	return 0, fmt.Errorf("unrecognised version field %q", string(b))
}

func effectiveFormat(raw rawDataFormat, isPlus bool) DataFormat {
	switch {
	case raw == rawBDF && isPlus:
		return FormatBDFPlus
	case raw == rawBDF:
		return FormatBDF
	case isPlus:
		return FormatEDFPlus
	default:
		return FormatEDF
	}
}

// parseReservedFlags inspects the 44-byte reserved field for the EDF+/BDF+
// marker and the continuous/discontinuous flag, per spec §4.1.
func parseReservedFlags(reserved string) (isPlus, discontinuous bool) {
	upper := strings.ToUpper(reserved)
	if strings.HasPrefix(upper, "EDF+") || strings.HasPrefix(upper, "BDF+") {
		isPlus = true
		if len(upper) > 4 {
			switch upper[4] {
			case 'D':
				discontinuous = true
			case 'C':
				discontinuous = false
			}
		}
	}
	return isPlus, discontinuous
}

// parseStartTimestamp parses the dd.mm.yy / hh.mm.ss fields. A parse
// failure is logged and the field left nil; it does not abort header
// parsing (spec §4.1).
func parseStartTimestamp(dateField, timeField []byte) *time.Time {
	dateStr := strings.TrimSpace(string(dateField))
	timeStr := strings.TrimSpace(string(timeField))

	var dd, mm, yy, hh, min, ss int
	if _, err := fmt.Sscanf(dateStr, "%2d.%2d.%2d", &dd, &mm, &yy); err != nil {
		slog.Warn("failed to parse recording start date", slog.String("date", dateStr), slog.Any("error", err))
		return nil
	}
	if _, err := fmt.Sscanf(timeStr, "%2d.%2d.%2d", &hh, &min, &ss); err != nil {
		slog.Warn("failed to parse recording start time", slog.String("time", timeStr), slog.Any("error", err))
		return nil
	}

	year := 1900 + yy
	if yy < 85 {
		year = 2000 + yy
	}

	t := time.Date(year, time.Month(mm), dd, hh, min, ss, 0, time.UTC)
	return &t
}

// parseSignalSpecs parses the per-signal header blocks. block must be
// exactly signalCount*256 bytes, laid out as ten fields each repeated
// signalCount times contiguously (spec §4.1).
func parseSignalSpecs(block []byte, signalCount int, isPlus bool, dataRecordDuration float64) ([]SignalSpec, error) {
	specs := make([]SignalSpec, signalCount)

	read := func(fieldLen int, off *int, assign func(i int, s string)) {
		for i := 0; i < signalCount; i++ {
			s := strings.TrimSpace(string(block[*off : *off+fieldLen]))
			assign(i, s)
			*off += fieldLen
		}
	}

	off := 0
	read(16, &off, func(i int, s string) { specs[i].Label = s })
	read(80, &off, func(i int, s string) { specs[i].Transducer = s })
	read(8, &off, func(i int, s string) { specs[i].PhysicalUnit = s })

	var firstErr error
	read(8, &off, func(i int, s string) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("signal %d physicalMin %q: %w", i, s, err)
		}
		specs[i].PhysicalMin = v
	})
	read(8, &off, func(i int, s string) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("signal %d physicalMax %q: %w", i, s, err)
		}
		specs[i].PhysicalMax = v
	})
	read(8, &off, func(i int, s string) {
		v, err := strconv.Atoi(s)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("signal %d digitalMin %q: %w", i, s, err)
		}
		specs[i].DigitalMin = v
	})
	read(8, &off, func(i int, s string) {
		v, err := strconv.Atoi(s)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("signal %d digitalMax %q: %w", i, s, err)
		}
		specs[i].DigitalMax = v
	})
	read(80, &off, func(i int, s string) { specs[i].Prefiltering = s })
	read(8, &off, func(i int, s string) {
		v, err := strconv.Atoi(s)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("signal %d sampleCount %q: %w", i, s, err)
		}
		specs[i].SampleCount = v
	})
	read(32, &off, func(i int, s string) { specs[i].Reserved = s })

	if firstErr != nil {
		return nil, newErr(ErrKindMalformedHeader, "signal calibration field", firstErr)
	}

	for i := range specs {
		specs[i].deriveCalibration(isPlus, dataRecordDuration)
	}

	return specs, nil
}

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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	edf "github.com/OpenPSG/edfengine"
)

const (
	talFieldSep = 0x14
	talDurSep   = 0x15
	talTerm     = 0x00
)

// fixtureSignal describes one channel to synthesize for a test fixture.
type fixtureSignal struct {
	label                    string
	physicalMin, physicalMax float64
	digitalMin, digitalMax   int
	sampleCount              int
}

// recordData holds per-channel raw sample values (pre-conversion digital
// values for data channels, or raw TAL bytes for the annotation channel)
// for one data record.
type recordData struct {
	digital map[int][]int // channel index -> digital samples
	tal     map[int][]byte
}

// buildEDF synthesizes a minimal, valid EDF/EDF+ byte buffer: a 256-byte
// fixed header, one 256-byte block per signal, and len(records) data
// records, writing 2-byte little-endian samples (or raw TAL bytes for
// annotation channels).
func buildEDF(isPlus bool, discontinuous bool, dataRecordDuration float64, signals []fixtureSignal, records []recordData) []byte {
	return buildRecording(edf.FormatEDF, isPlus, discontinuous, dataRecordDuration, signals, records)
}

func buildRecording(format edf.DataFormat, isPlus, discontinuous bool, dataRecordDuration float64, signals []fixtureSignal, records []recordData) []byte {
	bps := format.BytesPerSample()

	var buf bytes.Buffer

	// Fixed 256-byte header.
	if format == edf.FormatBDF || format == edf.FormatBDFPlus {
		buf.WriteByte(0xFF)
		writeField(&buf, "BIOSEMI", 7)
	} else {
		writeField(&buf, "0", 8)
	}
	writeField(&buf, "TEST PATIENT", 80)
	writeField(&buf, "TEST RECORDING", 80)
	writeField(&buf, "01.01.20", 8)
	writeField(&buf, "00.00.00", 8)

	headerRecordBytes := 256 + len(signals)*256
	writeField(&buf, fmt.Sprintf("%d", headerRecordBytes), 8)

	reserved := ""
	if isPlus {
		prefix := "EDF+"
		if format == edf.FormatBDF || format == edf.FormatBDFPlus {
			prefix = "BDF+"
		}
		if discontinuous {
			reserved = prefix + "D"
		} else {
			reserved = prefix + "C"
		}
	}
	writeField(&buf, reserved, 44)

	writeField(&buf, fmt.Sprintf("%d", len(records)), 8)
	writeField(&buf, fmt.Sprintf("%g", dataRecordDuration), 8)
	writeField(&buf, fmt.Sprintf("%d", len(signals)), 4)

	// Per-signal blocks.
	for _, s := range signals {
		writeField(&buf, s.label, 16)
	}
	for range signals {
		writeField(&buf, "transducer", 80)
	}
	for range signals {
		writeField(&buf, "uV", 8)
	}
	for _, s := range signals {
		writeField(&buf, fmt.Sprintf("%g", s.physicalMin), 8)
	}
	for _, s := range signals {
		writeField(&buf, fmt.Sprintf("%g", s.physicalMax), 8)
	}
	for _, s := range signals {
		writeField(&buf, fmt.Sprintf("%d", s.digitalMin), 8)
	}
	for _, s := range signals {
		writeField(&buf, fmt.Sprintf("%d", s.digitalMax), 8)
	}
	for range signals {
		writeField(&buf, "", 80)
	}
	for _, s := range signals {
		writeField(&buf, fmt.Sprintf("%d", s.sampleCount), 8)
	}
	for range signals {
		writeField(&buf, "", 32)
	}

	// Data records.
	for _, rec := range records {
		for ci, s := range signals {
			if tal, ok := rec.tal[ci]; ok {
				padded := make([]byte, s.sampleCount*bps)
				copy(padded, tal)
				buf.Write(padded)
				continue
			}
			for _, v := range rec.digital[ci] {
				writeSample(&buf, v, bps)
			}
		}
	}

	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, s string, width int) {
	if len(s) > width {
		s = s[:width]
	}
	buf.WriteString(s)
	for i := len(s); i < width; i++ {
		buf.WriteByte(' ')
	}
}

func writeSample(buf *bytes.Buffer, v, bps int) {
	switch bps {
	case 2:
		_ = binary.Write(buf, binary.LittleEndian, int16(v))
	case 3:
		u := uint32(int32(v))
		buf.WriteByte(byte(u))
		buf.WriteByte(byte(u >> 8))
		buf.WriteByte(byte(u >> 16))
	}
}

// talBytes builds raw TAL bytes for a single data record: a record-start
// marker followed by zero or more annotation entries, per the grammar in
// spec §4.2.
func talBytes(recordStart float64, entries ...talTestEntry) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%+g", recordStart)
	buf.WriteByte(talFieldSep)
	buf.WriteByte(talFieldSep)
	buf.WriteByte(talTerm)

	for _, e := range entries {
		fmt.Fprintf(&buf, "%+g", e.start)
		if e.duration > 0 {
			buf.WriteByte(talDurSep)
			fmt.Fprintf(&buf, "%g", e.duration)
		}
		buf.WriteByte(talFieldSep)
		for _, t := range e.texts {
			buf.WriteString(t)
			buf.WriteByte(talFieldSep)
		}
		buf.WriteByte(talTerm)
	}

	return buf.Bytes()
}

type talTestEntry struct {
	start    float64
	duration float64
	texts    []string
}

// memByteSource is a trivial in-memory ByteSource for tests.
type memByteSource struct {
	data []byte
}

func newMemByteSource(data []byte) *memByteSource { return &memByteSource{data: data} }

func (m *memByteSource) ReadRange(_ context.Context, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil, errors.New("range exceeds fixture size")
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+length])
	return out, nil
}

func (m *memByteSource) Size(_ context.Context) (int64, error) { return int64(len(m.data)), nil }

func (m *memByteSource) Close() error { return nil }

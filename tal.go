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
	"strconv"
)

const (
	talFieldSep = 0x14
	talDurSep   = 0x15
	talTerm     = 0x00
)

// TALEntry is one parsed Timestamped Annotation List record, prior to
// fanning out its text fields into individual Annotations (spec §4.2).
type TALEntry struct {
	Start    float64
	Duration float64
	Texts    []string
}

// ParsedRecord is the result of parsing the annotation channel bytes of a
// single data record.
type ParsedRecord struct {
	// RecordStart is the onset of the record-start marker: the first
	// onset in the buffer, which precedes a bare 0x14 0x14.
	RecordStart float64
	Entries     []TALEntry
}

// ParseTAL parses the Timestamped Annotation List byte language embedded
// in an EDF+/BDF+ annotation channel's per-record bytes, per the grammar
// in spec §4.2. Record scan stops at two consecutive 0x00 bytes or at the
// end of buf.
func ParseTAL(buf []byte) (*ParsedRecord, error) {
	pos := 0

	onset, next, err := parseOnset(buf, pos)
	if err != nil {
		return nil, newErr(ErrKindMalformedAnnotation, "record-start onset", err)
	}
	pos = next

	if pos+1 >= len(buf) || buf[pos] != talFieldSep || buf[pos+1] != talFieldSep {
		return nil, newErr(ErrKindMalformedAnnotation, "expected 0x14 0x14 after record-start onset", nil)
	}
	pos += 2

	result := &ParsedRecord{RecordStart: onset}

	for pos < len(buf) {
		if buf[pos] == talTerm {
			if pos+1 < len(buf) && buf[pos+1] == talTerm {
				break
			}
			pos++
			continue
		}

		entry, next, err := parseTALEntry(buf, pos)
		if err != nil {
			return nil, newErr(ErrKindMalformedAnnotation, "TAL entry", err)
		}
		if entry != nil {
			result.Entries = append(result.Entries, *entry)
		}
		pos = next
	}

	return result, nil
}

// parseOnset parses a signed decimal onset ("+12.5" or "-3") starting at
// pos, stopping before the next sentinel byte (0x14 or 0x15).
func parseOnset(buf []byte, pos int) (float64, int, error) {
	start := pos
	if pos >= len(buf) || (buf[pos] != '+' && buf[pos] != '-') {
		return 0, pos, fmt.Errorf("onset at byte %d missing sign", pos)
	}
	pos++
	for pos < len(buf) && buf[pos] != talFieldSep && buf[pos] != talDurSep {
		pos++
	}
	if pos >= len(buf) {
		return 0, pos, fmt.Errorf("unterminated onset starting at byte %d", start)
	}

	v, err := strconv.ParseFloat(string(buf[start:pos]), 64)
	if err != nil {
		return 0, pos, fmt.Errorf("onset %q: %w", string(buf[start:pos]), err)
	}
	return v, pos, nil
}

// parseTALEntry parses one `tal` production starting at pos (just past
// any record-start marker or prior entry). Returns nil, nextPos, nil for
// an entry whose only text field is empty (discarded per spec §4.2).
func parseTALEntry(buf []byte, pos int) (*TALEntry, int, error) {
	onset, pos, err := parseOnset(buf, pos)
	if err != nil {
		return nil, pos, err
	}

	entry := &TALEntry{Start: onset}

	if pos < len(buf) && buf[pos] == talDurSep {
		pos++
		durStart := pos
		for pos < len(buf) && buf[pos] != talFieldSep {
			pos++
		}
		if pos >= len(buf) {
			return nil, pos, fmt.Errorf("unterminated duration starting at byte %d", durStart)
		}
		dur, err := strconv.ParseFloat(string(buf[durStart:pos]), 64)
		if err != nil {
			return nil, pos, fmt.Errorf("duration %q: %w", string(buf[durStart:pos]), err)
		}
		entry.Duration = dur
	}

	if pos >= len(buf) || buf[pos] != talFieldSep {
		return nil, pos, fmt.Errorf("expected 0x14 before text fields at byte %d", pos)
	}
	pos++ // consume the onset/duration terminator

	for {
		textStart := pos
		for pos < len(buf) && buf[pos] != talFieldSep {
			if buf[pos] == talTerm {
				return nil, pos, fmt.Errorf("unexpected NUL inside text field at byte %d", pos)
			}
			pos++
		}
		if pos >= len(buf) {
			return nil, pos, fmt.Errorf("unterminated text field starting at byte %d", textStart)
		}

		if text := string(buf[textStart:pos]); text != "" {
			entry.Texts = append(entry.Texts, text)
		}
		pos++ // consume the trailing 0x14

		if pos < len(buf) && buf[pos] == talTerm {
			// Leave the entry terminator for ParseTAL, so that a NUL
			// right after it is seen as the double-NUL end of the record.
			break
		}
		// Otherwise another text field follows (0x14-delimited chain).
		if pos >= len(buf) {
			break
		}
	}

	if len(entry.Texts) == 0 {
		return nil, pos, nil
	}
	return entry, pos, nil
}

// Annotations fans out a ParsedRecord's TAL entries into one Annotation
// per text field, sharing Start/Duration, per spec §4.2.
func (p *ParsedRecord) Annotations() []Annotation {
	var out []Annotation
	for _, e := range p.Entries {
		for _, text := range e.Texts {
			out = append(out, Annotation{
				Start:    e.Start,
				Duration: e.Duration,
				Label:    text,
				Class:    "event",
			})
		}
	}
	return out
}

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
	"strings"
)

// trimLower trims surrounding whitespace and lower-cases s, for tolerant
// string comparisons of annotation channel labels.
func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ulpEqual reports whether a and b are within maxULPs representable steps
// of each other. Used wherever the spec requires comparing a parsed TAL
// onset against an expected record-start time (§4.3, §4.4, §8 invariant
// 4): direct float equality is unreliable after repeated addition of
// dataRecordDuration.
func ulpEqual(a, b float64, maxULPs int) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}

	ai := int64(math.Float64bits(a))
	bi := int64(math.Float64bits(b))

	if ai < 0 {
		ai = math.MinInt64 - ai
	}
	if bi < 0 {
		bi = math.MinInt64 - bi
	}

	diff := ai - bi
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(maxULPs)
}

// roundSamples converts a duration in seconds to a sample count at the
// given sampling rate, rounding to the nearest integer per spec invariant 2.
func roundSamples(seconds, samplingRate float64) int {
	return int(math.Round(seconds * samplingRate))
}

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
	"time"
)

// Config holds the recognised engine configuration keys (spec §6). It is
// constructible directly by library callers or loaded from YAML by
// cmd/edfinspect, the way tripwire/agent's internal/config package loads
// its Config from YAML.
type Config struct {
	// DataChunkSize is the target bytes per chunk during the progressive
	// sweep. Chunk record count is max(1, floor(DataChunkSize/recordByteSize)).
	DataChunkSize int `yaml:"data_chunk_size"`

	// MaxLoadCacheSize is the hard ceiling on total cached sample bytes
	// used to decide whether the whole-recording fast path applies.
	MaxLoadCacheSize int64 `yaml:"max_load_cache_size"`

	// AwaitSignalsMs is the deadline, in milliseconds, for a GetSignals
	// call to wait on an in-flight load before returning best-effort
	// cached data. Defaults to 5000.
	AwaitSignalsMs int `yaml:"await_signals_ms"`
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() Config {
	return Config{
		DataChunkSize:    1 << 20, // 1 MiB
		MaxLoadCacheSize: 256 << 20,
		AwaitSignalsMs:   5000,
	}
}

// Validate checks the configuration for internally consistent values,
// applying defaults for zero fields, the way tripwire/agent's
// config.Validate applies defaults post-unmarshal.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.DataChunkSize <= 0 {
		c.DataChunkSize = def.DataChunkSize
	}
	if c.MaxLoadCacheSize <= 0 {
		c.MaxLoadCacheSize = def.MaxLoadCacheSize
	}
	if c.AwaitSignalsMs <= 0 {
		c.AwaitSignalsMs = def.AwaitSignalsMs
	}
	if c.DataChunkSize < 256 {
		return fmt.Errorf("data_chunk_size too small: %d", c.DataChunkSize)
	}
	return nil
}

// AwaitDeadline returns AwaitSignalsMs as a time.Duration.
func (c *Config) AwaitDeadline() time.Duration {
	return time.Duration(c.AwaitSignalsMs) * time.Millisecond
}

// chunkRecordCount computes max(1, floor(DataChunkSize/recordByteSize)).
func (c *Config) chunkRecordCount(recordByteSize int) int {
	if recordByteSize <= 0 {
		return 1
	}
	n := c.DataChunkSize / recordByteSize
	if n < 1 {
		return 1
	}
	return n
}

// fitsWholeRecordingFastPath reports whether the recording is small
// enough to schedule a single forward sweep, per spec §4.6/§6: the
// widening ratio accounts for on-disk sample width growing to the
// float64 physical domain internally represented as 4-byte-equivalent
// budget units (x2 for 16-bit EDF, x4/3 for 24-bit BDF, per spec's
// configuration table).
func (c *Config) fitsWholeRecordingFastPath(recordByteSize, dataRecordCount int, format DataFormat) bool {
	ratio := 2.0
	if format == FormatBDF || format == FormatBDFPlus {
		ratio = 4.0 / 3.0
	}
	total := float64(recordByteSize) * float64(dataRecordCount) * ratio
	return total <= float64(c.MaxLoadCacheSize)
}

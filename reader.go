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
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
)

// readerState tracks the Reader facade's lifecycle, enforcing the
// NotInitialised/AlreadyInitialised contract from spec §7.
type readerState int

const (
	stateUninitialised readerState = iota
	stateStudyOpen
	stateCacheReady
	stateReleased
)

// Study summarises a successfully opened recording, returned by
// Open/OpenFile/OpenURL per spec §4.7.
type Study struct {
	Header  Header
	Signals []SignalSpec

	// DataLength is the nominal, header-declared recording length in
	// seconds (dataRecordCount * dataRecordDuration).
	DataLength float64

	// RecordingLength is the true recording length in seconds, which for
	// discontinuous recordings may exceed DataLength once the
	// discontinuous probe has run (populated by SetupCache).
	RecordingLength float64
}

// Reader is the facade described in spec §4.7: it performs initial setup
// (parse header, compute derived sizes, seed the discontinuous duration
// probe) and dispatches read requests to a CacheEngine.
type Reader struct {
	mu    sync.Mutex
	state readerState

	src     ByteSource
	hdr     *Header
	signals []SignalSpec
	engine  *CacheEngine
	cfg     Config
}

// NewReader creates an unopened Reader. Call Open/OpenFile/OpenURL next.
func NewReader() *Reader {
	return &Reader{cfg: DefaultConfig()}
}

// OpenFile opens a local EDF/EDF+/BDF/BDF+ file for reading.
func (r *Reader) OpenFile(path string) (*Study, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newErr(ErrKindIO, "open file", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, newErr(ErrKindIO, "stat file", err)
	}

	return r.Open(NewFileByteSource(f, info.Size()))
}

// OpenURL opens a recording served by an HTTP range-request capable URL.
func (r *Reader) OpenURL(client *http.Client, url string) (*Study, error) {
	return r.Open(NewHTTPByteSource(client, url))
}

// Open parses the header from src and constructs the Header and SignalSpec
// slice (the SignalCache is built later, by SetupCache), per spec §4.7: it
// issues two reads — [0,256)
// to discover signalCount, then [0, 256*(signalCount+1)) to complete the
// signal specs.
func (r *Reader) Open(src ByteSource) (*Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateUninitialised {
		return nil, newErr(ErrKindAlreadyInitialised, "reader already has an open study", nil)
	}

	ctx := context.Background()

	head, err := src.ReadRange(ctx, 0, minHeaderLen)
	if err != nil {
		return nil, err
	}

	signalCount, err := peekSignalCount(head)
	if err != nil {
		return nil, newErr(ErrKindMalformedHeader, "signalCount", err)
	}

	full, err := src.ReadRange(ctx, 0, int64(minHeaderLen+signalCount*signalBlockLen))
	if err != nil {
		return nil, err
	}

	hdr, signals, err := ParseHeader(full)
	if err != nil {
		return nil, err
	}

	r.src = src
	r.hdr = hdr
	r.signals = signals
	r.state = stateStudyOpen

	return &Study{
		Header:     *hdr,
		Signals:    append([]SignalSpec(nil), signals...),
		DataLength: float64(hdr.DataRecordCount) * hdr.DataRecordDuration,
	}, nil
}

// peekSignalCount reads just the 4-byte ASCII signalCount field (offset
// 252) from the fixed 256-byte header block, before the full signal
// header blocks are available.
func peekSignalCount(head []byte) (int, error) {
	if len(head) < minHeaderLen {
		return 0, fmt.Errorf("short header buffer")
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(head[252:256])), "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("signalCount must be positive, got %d", n)
	}
	return n, nil
}

// SetupCache creates the CacheEngine and its (initially empty, growing)
// SignalCache, initialises sink, if given, with per-channel capacities
// sized for the full recording duration, and, for discontinuous
// recordings, runs the discontinuous probe (spec §4.6/§4.7). cfg may be
// the zero value, in which case
// DefaultConfig is used; sink may be nil, in which case the engine uses
// its own private SignalCache only.
func (r *Reader) SetupCache(cfg Config, sink SignalSink) (*Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateUninitialised || r.state == stateReleased {
		return nil, newErr(ErrKindNotInitialised, "call Open before SetupCache", nil)
	}
	if r.state == stateCacheReady {
		return nil, newErr(ErrKindAlreadyInitialised, "cache already set up", nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, newErr(ErrKindMalformedHeader, "invalid config", err)
	}
	r.cfg = cfg

	r.engine = NewCacheEngine(r.hdr, r.signals, r.src, r.cfg, sink)
	if err := r.engine.Setup(context.Background()); err != nil {
		return nil, err
	}
	r.state = stateCacheReady

	return &Study{
		Header:          *r.hdr,
		Signals:         append([]SignalSpec(nil), r.signals...),
		DataLength:      float64(r.hdr.DataRecordCount) * r.hdr.DataRecordDuration,
		RecordingLength: r.engine.TotalRecordingLength(),
	}, nil
}

// OnProgress registers the callback invoked after each sweep chunk
// during CacheSignalsFromURL.
func (r *Reader) OnProgress(fn func(ProgressEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return newErr(ErrKindNotInitialised, "call SetupCache first", nil)
	}
	r.engine.OnProgress(fn)
	return nil
}

// CacheSignalsFromURL launches the progressive whole-recording sweep.
func (r *Reader) CacheSignalsFromURL(startFrom *float64) error {
	r.mu.Lock()
	engine := r.engine
	r.mu.Unlock()

	if engine == nil {
		return newErr(ErrKindNotInitialised, "call SetupCache first", nil)
	}
	return engine.CacheSignalsFromURL(startFrom)
}

// GetSignals returns physical samples, annotations and gaps for rng,
// blocking up to Config.AwaitSignalsMs if the range is not yet cached.
func (r *Reader) GetSignals(ctx context.Context, rng TimeRange, filter ChannelFilter) (*SignalsResult, error) {
	r.mu.Lock()
	engine := r.engine
	r.mu.Unlock()

	if engine == nil {
		return nil, newErr(ErrKindNotInitialised, "call SetupCache first", nil)
	}
	return engine.GetSignals(ctx, rng, filter)
}

// GetAnnotations returns annotations with Start in rng, clipped to the
// recording bounds.
func (r *Reader) GetAnnotations(rng TimeRange) ([]Annotation, error) {
	r.mu.Lock()
	engine := r.engine
	r.mu.Unlock()

	if engine == nil {
		return nil, newErr(ErrKindNotInitialised, "call SetupCache first", nil)
	}
	return engine.GetAnnotations(rng)
}

// GetDataGaps returns the gaps overlapping rng, clipped to the recording
// bounds.
func (r *Reader) GetDataGaps(rng TimeRange) ([]GapEntry, error) {
	r.mu.Lock()
	engine := r.engine
	r.mu.Unlock()

	if engine == nil {
		return nil, newErr(ErrKindNotInitialised, "call SetupCache first", nil)
	}
	return engine.GetDataGaps(rng)
}

// Release cancels all in-flight processes, drops cache buffers and
// closes the underlying ByteSource.
func (r *Reader) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateReleased {
		return nil
	}

	var err error
	if r.engine != nil {
		err = r.engine.Release()
	}
	if r.src != nil {
		if cerr := r.src.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	r.state = stateReleased
	return err
}

var _ io.Closer = (*Reader)(nil)

// Close is an alias for Release, satisfying io.Closer for callers that
// manage Readers with defer r.Close().
func (r *Reader) Close() error { return r.Release() }

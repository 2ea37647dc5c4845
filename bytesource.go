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
)

// ByteSource is a random-access read over a byte range, backed by a local
// file or an HTTP range-request capable URL (§6). Implementations must be
// cheap to call: the engine may issue hundreds of range reads while
// filling the cache.
type ByteSource interface {
	// ReadRange returns exactly length bytes starting at offset, or an
	// error wrapping ErrKindShortRead/ErrKindIO (FileByteSource reports a
	// range past the end of the source as ErrKindOutOfRange).
	ReadRange(ctx context.Context, offset, length int64) ([]byte, error)

	// Size returns the total byte length of the source, if known.
	Size(ctx context.Context) (int64, error)

	// Close releases any resources held by the source.
	Close() error
}

// FileByteSource reads from an io.ReaderAt, such as an *os.File.
type FileByteSource struct {
	r    io.ReaderAt
	size int64
	c    io.Closer
}

// NewFileByteSource wraps r (which must also support ReadAt) as a
// ByteSource. size is the total file length.
func NewFileByteSource(r io.ReaderAt, size int64) *FileByteSource {
	c, _ := r.(io.Closer)
	return &FileByteSource{r: r, size: size, c: c}
}

func (f *FileByteSource) ReadRange(_ context.Context, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > f.size {
		return nil, newErr(ErrKindOutOfRange, fmt.Sprintf("range [%d,%d) exceeds source size %d", offset, offset+length, f.size), nil)
	}

	buf := make([]byte, length)
	n, err := f.r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, newErr(ErrKindIO, "read range", err)
	}
	if int64(n) != length {
		return nil, newErr(ErrKindShortRead, fmt.Sprintf("requested %d bytes, got %d", length, n), nil)
	}
	return buf, nil
}

func (f *FileByteSource) Size(_ context.Context) (int64, error) { return f.size, nil }

func (f *FileByteSource) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

// HTTPByteSource reads byte ranges from an HTTP server using Range
// requests, the way tripwire/agent's transport client issues
// context-scoped requests with explicit status checking.
type HTTPByteSource struct {
	client *http.Client
	url    string

	size int64
}

// NewHTTPByteSource creates a ByteSource backed by a range-request
// capable HTTP URL. client may be nil, in which case http.DefaultClient
// is used.
func NewHTTPByteSource(client *http.Client, url string) *HTTPByteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPByteSource{client: client, url: url, size: -1}
}

func (h *HTTPByteSource) ReadRange(ctx context.Context, offset, length int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, newErr(ErrKindIO, "build range request", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, newErr(ErrKindIO, "perform range request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, newErr(ErrKindIO, fmt.Sprintf("unexpected status %d for range request", resp.StatusCode), nil)
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, newErr(ErrKindIO, "read range response body", err)
	}
	if int64(n) != length {
		return nil, newErr(ErrKindShortRead, fmt.Sprintf("requested %d bytes, got %d", length, n), nil)
	}
	return buf, nil
}

func (h *HTTPByteSource) Size(ctx context.Context) (int64, error) {
	if h.size >= 0 {
		return h.size, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url, nil)
	if err != nil {
		return 0, newErr(ErrKindIO, "build head request", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, newErr(ErrKindIO, "perform head request", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return 0, newErr(ErrKindIO, "server did not report Content-Length", nil)
	}

	h.size = resp.ContentLength
	return h.size, nil
}

func (h *HTTPByteSource) Close() error { return nil }

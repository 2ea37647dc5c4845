// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edfengine

import "errors"

// ErrorKind classifies engine errors so callers can branch on failure
// mode without string matching, per spec §7.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindMalformedHeader
	ErrKindMalformedAnnotation
	ErrKindShortRead
	ErrKindIO
	ErrKindOutOfRange
	ErrKindNotInitialised
	ErrKindAlreadyInitialised
	ErrKindCorruptedRecord
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindMalformedHeader:
		return "MalformedHeader"
	case ErrKindMalformedAnnotation:
		return "MalformedAnnotation"
	case ErrKindShortRead:
		return "ShortRead"
	case ErrKindIO:
		return "IoError"
	case ErrKindOutOfRange:
		return "OutOfRange"
	case ErrKindNotInitialised:
		return "NotInitialised"
	case ErrKindAlreadyInitialised:
		return "AlreadyInitialised"
	case ErrKindCorruptedRecord:
		return "CorruptedRecord"
	default:
		return "Unknown"
	}
}

// EngineError is the concrete error type returned across the request
// boundary (§7): every failure is wrapped so a caller can recover the
// ErrorKind with errors.As.
type EngineError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *EngineError) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, msg string, cause error) *EngineError {
	return &EngineError{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the ErrorKind from err, or ErrKindUnknown if err does
// not wrap an *EngineError.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ErrKindUnknown
}

// Sentinel errors naming the awaiter timeout, a cancelled CacheProcess and
// a released reader. They are not EngineError kinds. No function in this
// package returns them: an awaiter deadline is logged and the request is
// served from the cache, and a cancelled sweep simply stops.
var (
	ErrAwaitTimeout = errors.New("edfengine: awaiter deadline exceeded")
	ErrCancelled    = errors.New("edfengine: cache process cancelled")
	ErrReleased     = errors.New("edfengine: reader released")
)

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edfengine implements the signal-data engine behind an
// interactive polygraphic (EEG/EMG/EOG/ECG) recording viewer: it reads
// EDF, EDF+ and BDF/BDF+ recordings from a random-access byte source
// (local file or HTTP range-request capable URL) and exposes
// time-ranged physical signals, annotations and data-gap metadata
// through a progressive, concurrent range cache.
//
// The entry point is Reader: Open (or OpenFile/OpenURL) parses the
// header, SetupCache allocates the cache and runs the discontinuous
// probe, and GetSignals/GetAnnotations/GetDataGaps serve time-ranged
// requests, optionally backed by a background CacheSignalsFromURL sweep.
//
// Rendering, filtering, montage computation, writing EDF files, online
// (in-progress) recordings and multi-file stitching are out of scope.
package edfengine

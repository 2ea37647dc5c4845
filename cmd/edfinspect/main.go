// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command edfinspect is a small operator tool for inspecting EDF/EDF+/BDF
// recordings from the command line: dumping the parsed header, listing
// data gaps, and listing annotations in a time window.
package main

import (
	"fmt"
	"os"

	"github.com/OpenPSG/edfengine/cmd/edfinspect/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

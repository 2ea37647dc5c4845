// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cli

import (
	"fmt"

	edf "github.com/OpenPSG/edfengine"
	"github.com/OpenPSG/edfengine/cmd/edfinspect/internal/style"
	"github.com/spf13/cobra"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps <file>",
	Short: "Run the discontinuity probe and forward sweep, and list data gaps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, study, err := openReader(args[0])
		if err != nil {
			return err
		}
		defer r.Release()

		if err := r.CacheSignalsFromURL(nil); err != nil {
			return fmt.Errorf("start sweep: %w", err)
		}

		if _, err := r.GetSignals(cmd.Context(), edf.TimeRange{Start: 0, End: study.RecordingLength}, edf.ChannelFilter{}); err != nil {
			return fmt.Errorf("await coverage: %w", err)
		}

		gaps, err := r.GetDataGaps(edf.TimeRange{Start: 0, End: study.RecordingLength})
		if err != nil {
			return err
		}

		if len(gaps) == 0 {
			fmt.Println(style.Muted("no data gaps"))
			return nil
		}

		rows := make([][]string, len(gaps))
		for i, g := range gaps {
			rows[i] = []string{fmt.Sprintf("%g", g.DataTime), fmt.Sprintf("%g", g.GapDuration)}
		}
		fmt.Println(style.Table([]string{"Cache time (s)", "Duration (s)"}, rows))
		return nil
	},
}

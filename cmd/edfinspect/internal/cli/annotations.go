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

var (
	annFrom float64
	annTo   float64
)

var annotationsCmd = &cobra.Command{
	Use:   "annotations <file>",
	Short: "Print annotations in a recording-time window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, study, err := openReader(args[0])
		if err != nil {
			return err
		}
		defer r.Release()

		to := annTo
		if to <= 0 {
			to = study.RecordingLength
		}
		rng := edf.TimeRange{Start: annFrom, End: to}

		if _, err := r.GetSignals(cmd.Context(), rng, edf.ChannelFilter{}); err != nil {
			return fmt.Errorf("load range: %w", err)
		}

		anns, err := r.GetAnnotations(rng)
		if err != nil {
			return err
		}

		if len(anns) == 0 {
			fmt.Println(style.Muted("no annotations in range"))
			return nil
		}

		rows := make([][]string, len(anns))
		for i, a := range anns {
			rows[i] = []string{fmt.Sprintf("%g", a.Start), fmt.Sprintf("%g", a.Duration), a.Label, a.Class}
		}
		fmt.Println(style.Table([]string{"Start (s)", "Duration (s)", "Label", "Class"}, rows))
		return nil
	},
}

func init() {
	annotationsCmd.Flags().Float64Var(&annFrom, "from", 0, "window start, recording time seconds")
	annotationsCmd.Flags().Float64Var(&annTo, "to", 0, "window end, recording time seconds (default: end of recording)")
}

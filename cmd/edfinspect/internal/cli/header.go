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

	"github.com/OpenPSG/edfengine/cmd/edfinspect/internal/style"
	"github.com/spf13/cobra"
)

var headerCmd = &cobra.Command{
	Use:   "header <file>",
	Short: "Parse and print the recording header and signal specs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, study, err := openReader(args[0])
		if err != nil {
			return err
		}
		defer r.Release()

		fmt.Println(style.Title(fmt.Sprintf("%s (%s)", args[0], study.Header.DataFormat)))
		fmt.Printf("Patient:            %s\n", study.Header.PatientID)
		fmt.Printf("Recording:          %s\n", study.Header.LocalRecordingID)
		fmt.Printf("Data records:       %d x %gs\n", study.Header.DataRecordCount, study.Header.DataRecordDuration)
		fmt.Printf("Nominal length:     %gs\n", study.DataLength)
		fmt.Printf("Recording length:   %gs\n", study.RecordingLength)
		fmt.Printf("Discontinuous:      %v\n\n", study.Header.Discontinuous)

		rows := make([][]string, 0, len(study.Signals))
		for i, s := range study.Signals {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i),
				s.Label,
				s.PhysicalUnit,
				fmt.Sprintf("%g", s.SamplingRate()),
				fmt.Sprintf("%v", s.IsAnnotationChannel()),
			})
		}
		fmt.Println(style.Table([]string{"#", "Label", "Unit", "Rate (Hz)", "Annotation"}, rows))
		return nil
	},
}

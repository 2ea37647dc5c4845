// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package style holds the lipgloss presentation helpers shared by
// edfinspect's subcommands.
package style

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4682B4"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#666666")).Padding(0, 1)
)

// Title renders a section title.
func Title(s string) string { return titleStyle.Render(s) }

// Muted renders de-emphasized text, used for empty-result placeholders.
func Muted(s string) string { return mutedStyle.Render(s) }

// Table renders rows as a fixed-width, bordered table with headers.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	b.WriteString(headStyle.Render(padRow(headers, widths)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("-", totalWidth(widths))))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(padRow(row, widths))
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func padRow(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}
	return strings.Join(parts, "  ")
}

func totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	if total > 2 {
		total -= 2
	}
	return total
}

// Package ui renders build results for the terminal
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/motiz88/parcel/internal/build"
)

// Table is a simple aligned-column table
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, headers []string, noColor bool) *Table {
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table to the writer
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	for i, header := range t.headers {
		bold.Fprint(t.writer, padRight(header, widths[i]))
		if i < len(t.headers)-1 {
			fmt.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)

	for i, width := range widths {
		gray.Fprint(t.writer, strings.Repeat("─", width))
		if i < len(widths)-1 {
			gray.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprint(t.writer, padRight(cell, widths[i]))
				if i < len(row)-1 {
					fmt.Fprint(t.writer, "  ")
				}
			}
		}
		fmt.Fprintln(t.writer)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RenderBundleReport prints one row per output bundle with its on-disk size
func RenderBundleReport(w io.Writer, result *build.Result, noColor bool) {
	if result == nil || result.Bundles == nil {
		return
	}

	table := NewTable(w, []string{"Bundle", "Size", "Assets", "Output"}, noColor)

	bundles := result.Bundles.Bundles()
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].Name < bundles[j].Name })

	for _, bundle := range bundles {
		path, ok := result.OutputFiles[bundle.ID]
		if !ok {
			continue
		}
		size := "-"
		if info, err := os.Stat(path); err == nil {
			size = formatSize(info.Size())
		}
		assetCount := len(result.Bundles.AssetsInBundle(bundle))
		table.AddRow(bundle.Name, size, fmt.Sprintf("%d", assetCount), path)
	}

	table.Render()
}

// formatSize renders a byte count in human units
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

// terminalWidth returns the stdout width, or 100 when stdout is not a terminal
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 100
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func itemLine(it domain.MediaItem, width int) string {
	meta := string(it.MediaType)
	if y := it.Year(); y > 0 {
		meta += fmt.Sprintf("  %d", y)
	}
	if r := it.Rating(); r > 0 {
		meta += fmt.Sprintf("  %.1f", r)
	}
	key := it.Key().String()
	titleWidth := max(width-len(meta)-len(key)-6, 10)
	return fmt.Sprintf("%-14s %s  %s", key, styles.Pad(styles.Truncate(it.Title, titleWidth), titleWidth), meta)
}

func printItems(w io.Writer, items []domain.MediaItem) {
	width := terminalWidth()
	for _, it := range items {
		fmt.Fprintln(w, itemLine(it, width))
	}
}

func printRow(w io.Writer, row domain.Row, limit int) {
	header := row.Title
	if row.Source != "" {
		header += fmt.Sprintf(" [%s]", row.Source)
	}
	fmt.Fprintf(w, "%s (%s, page %d/%d)\n", header, row.Section, row.Page, row.TotalPages)
	if row.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", row.Error)
	}
	items := row.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	width := terminalWidth() - 2
	for _, it := range items {
		fmt.Fprintln(w, "  "+itemLine(it, width))
	}
	if len(items) < len(row.Items) {
		fmt.Fprintf(w, "  ... %d more\n", len(row.Items)-len(items))
	}
}

func printPeople(w io.Writer, people []domain.Person) {
	for _, p := range people {
		line := fmt.Sprintf("person:%-7d %s", p.ID, p.Name)
		if p.KnownForDepartment != "" {
			line += "  " + p.KnownForDepartment
		}
		if len(p.KnownFor) > 0 {
			titles := make([]string, 0, len(p.KnownFor))
			for _, it := range p.KnownFor {
				titles = append(titles, it.Title)
			}
			line += "  (" + strings.Join(titles, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
}

package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Canopy ASCII art banner to w.
func PrintBanner(w io.Writer, p termenv.Profile) {
	// Using a subtle gradient-like color scheme (Green/Teal)
	lines := []struct {
		text  string
		color string
	}{
		{"   ___                              ", "#a3e635"},
		{"  / __\\__ _ _ __   ___  _ __  _   _ ", "#4ade80"},
		{" / /  / _` | '_ \\ / _ \\| '_ \\| | | |", "#34d399"},
		{"/ /__| (_| | | | | (_) | |_) | |_| |", "#2dd4bf"},
		{"\\____/\\__,_|_| |_|\\___/| .__/ \\__, |", "#22d3ee"},
		{"                       |_|    |___/ ", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

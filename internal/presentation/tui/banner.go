package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the attach banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"                 _         ", "#818cf8"},
		{"  _ __  __ _ _ _| |___ _  _", "#a78bfa"},
		{" | '_ \\/ _` | '_| / -_) || |", "#c084fc"},
		{" | .__/\\__,_|_| |_\\___|\\_, |", "#e879f9"},
		{" |_|                   |__/ ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, p.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}

package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the storyweaver banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{` ___ _                                        `, "#818cf8"},
		{`/ __| |_ ___ _ _ _  ___ __ _____ __ ___ _____ _ _ `, "#a78bfa"},
		{`\__ \  _/ _ \ '_| || \ V  V / -_) _' \ V / -_) '_|`, "#c084fc"},
		{`|___/\__\___/_|  \_, |\_/\_/\___\__,_|\_/\___|_|  `, "#e879f9"},
		{`                 |__/                             `, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

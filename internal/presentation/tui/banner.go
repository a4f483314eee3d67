package tui

import (
	"fmt"
	"io"
)

var bannerLines = []string{
	`    _   ___ _____     _             ___ _`,
	`   /_\ |_ _|_   _|  _| |__  ___ _ _| __| |_____ __ __`,
	`  / _ \ | |  | || || | '_ \/ -_) '_| _|| / _ \ V  V /`,
	` /_/ \_\___| |_| \_,_|_.__/\___|_| |_| |_\___/\_/\_/`,
}

var bannerColors = []string{"#38bdf8", "#818cf8", "#c084fc", "#f472b6"}

// PrintBanner writes the AITuberFlow banner and version to w. Colours are
// only used when w is a terminal.
func PrintBanner(w io.Writer, version string) {
	out := NewOutput(w)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i%len(bannerColors)])))
	}
	fmt.Fprintln(w, out.String("  workflow engine "+version).Faint())
	fmt.Fprintln(w)
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI tones for status output; empty string means plain.
const (
	toneReset  = "\x1b[0m"
	toneGreen  = "\x1b[32m"
	toneYellow = "\x1b[33m"
	toneCyan   = "\x1b[36m"
)

// statusLine writes one indented "label: value" row, tinted with tone when
// color is on.
func statusLine(w io.Writer, label, value, tone string, colorize bool) {
	line := fmt.Sprintf("  %-12s %s", label+":", value)
	if colorize && tone != "" {
		line = tone + line + toneReset
	}
	fmt.Fprintln(w, line)
}

// sectionHeader writes a titled divider for one block of status output.
func sectionHeader(w io.Writer, title string, colorize bool) {
	line := "== " + title + " =="
	if colorize {
		line = toneCyan + line + toneReset
	}
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, strings.Repeat("-", len(title)+6))
}

// colorizeOutput reports whether w is an interactive terminal.
func colorizeOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

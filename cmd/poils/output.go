package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// statusLabelWidth fits the longest label printStatus emits
// ("Token expires:" from whoami) so field values line up in a column.
const statusLabelWidth = 14

// colorEnabled honors both the --no-color flag and the NO_COLOR convention.
func colorEnabled() bool {
	return !noColor && os.Getenv("NO_COLOR") == ""
}

func colorize(color, text string) string {
	if !colorEnabled() {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

// statusLine pads the label before colorizing so escape codes never skew
// the column.
func statusLine(label, val string) string {
	l := fmt.Sprintf("%-*s", statusLabelWidth, label+":")
	return "  " + colorize(colorBold, l) + " " + val
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintln(os.Stderr, statusLine(label, fmt.Sprintf(format, args...)))
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

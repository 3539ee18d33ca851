package ui

import "fmt"

// ANSI256 color codes for door states, reply outcomes, and alerts.
const (
	colorAccent = 74  // blue
	colorGood   = 114 // green
	colorWarn   = 179 // yellow
	colorBad    = 167 // red
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderGood returns s in green, used for settled states and confirmations.
func RenderGood(s string) string { return render(colorGood, s) }

// RenderWarn returns s in yellow, used for in-flight states and warnings.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderBad returns s in red, used for failures and alerts.
func RenderBad(s string) string { return render(colorBad, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

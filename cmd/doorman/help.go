package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/doorman-io/doorman/internal/ui"
	"github.com/spf13/cobra"
)

// Patterns used to colorize Cobra's default help output.
var (
	// Section headers: unindented line ending with ":" (e.g. "Doors:", "Flags:").
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)

	// Command names: two-space indent, then a word, then two-or-more spaces
	// before the description.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)

	// Flag type annotations: e.g. "--nats-url string", "--follow duration".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(string|strings|int|duration)`)

	// Default values, e.g. (default "nats://127.0.0.1:4222").
	reDefault = regexp.MustCompile(`\(default "[^"]*"\)`)
)

// colorizedHelpFunc returns a Cobra help function that post-processes the
// default help text with ANSI colors when the terminal supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		orig := cmd.OutOrStdout()

		if !ui.ShouldUseColor() {
			cmd.SetOut(orig)
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)

		fmt.Fprint(orig, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput applies ANSI styling to Cobra's plain-text help.
func colorizeHelpOutput(s string) string {
	s = reGroupHeader.ReplaceAllStringFunc(s, func(match string) string {
		return ui.RenderAccent(strings.TrimSpace(match))
	})

	// Commands keep their two-space gutters so the column layout survives.
	s = reCommand.ReplaceAllString(s, "$1"+ui.RenderCommand("$2")+"$3")

	s = reFlagType.ReplaceAllString(s, "$1"+ui.RenderMuted("$2"))
	s = reDefault.ReplaceAllStringFunc(s, ui.RenderMuted)
	return s
}

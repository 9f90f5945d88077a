// Package ui renders catalog events for terminal output.
package ui

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/landscapehq/landscape/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorCreate = 114 // green
	colorUpdate = 74  // blue
	colorDelete = 167 // red
	colorMuted  = 245 // medium gray
)

var noColor bool

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func ShouldUseColor() bool {
	// https://no-color.org — any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	// CLICOLOR_FORCE=1 forces color even without a TTY.
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	// CLICOLOR=0 explicitly disables color.
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	// Default: color if stdout is a terminal.
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func colorize(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return colorize(colorMuted, s)
}

// RenderEventType returns the event type colored by its effect: green for
// creations, red for deletions and removals, blue for everything else.
func RenderEventType(t model.EventType) string {
	s := t.String()
	switch {
	case strings.HasSuffix(s, ".created") || strings.HasSuffix(s, ".assigned"):
		return colorize(colorCreate, s)
	case strings.HasSuffix(s, ".deleted") || strings.HasSuffix(s, ".removed") || strings.HasSuffix(s, ".archived"):
		return colorize(colorDelete, s)
	default:
		return colorize(colorUpdate, s)
	}
}

// FormatEvent renders one event as a single log line:
// timestamp, colored type, entity reference, optional actor.
func FormatEvent(evt *model.Event) string {
	var b strings.Builder
	b.WriteString(RenderMuted(evt.CreatedAt.Local().Format("15:04:05")))
	b.WriteString("  ")
	b.WriteString(RenderEventType(evt.Type))
	// Pad on the raw width: the ANSI escapes would skew fmt's %-20s.
	if n := 18 - len(evt.Type.String()); n > 0 {
		b.WriteString(strings.Repeat(" ", n))
	}
	b.WriteString("  ")
	b.WriteString(evt.EntityType)
	b.WriteString("/")
	b.WriteString(evt.EntityID)
	if evt.Actor != "" {
		b.WriteString("  ")
		b.WriteString(RenderMuted("by " + evt.Actor))
	}
	return b.String()
}

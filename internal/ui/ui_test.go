package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/landscapehq/landscape/internal/model"
)

func TestShouldUseColor_RespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "")
	if ShouldUseColor() {
		t.Error("NO_COLOR set but ShouldUseColor() = true")
	}
}

func TestShouldUseColor_ForceWins(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE=1 but ShouldUseColor() = false")
	}
}

func TestFormatEvent(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	evt := &model.Event{
		Type:       model.EventCardCreated,
		EntityType: "application",
		EntityID:   "fs-1",
		Actor:      "alice",
		CreatedAt:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}

	line := FormatEvent(evt)
	for _, want := range []string{"card.created", "application/fs-1", "by alice"} {
		if !strings.Contains(line, want) {
			t.Errorf("FormatEvent() = %q, missing %q", line, want)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Errorf("FormatEvent() contains ANSI escapes with color disabled: %q", line)
	}
}

func TestRenderEventType_Colors(t *testing.T) {
	noColor = false

	tests := []struct {
		typ  model.EventType
		code string
	}{
		{model.EventCardCreated, "114"},
		{model.EventTagAssigned, "114"},
		{model.EventCardUpdated, "74"},
		{model.EventCardDeleted, "167"},
		{model.EventCardArchived, "167"},
		{model.EventTagRemoved, "167"},
	}
	for _, tc := range tests {
		got := RenderEventType(tc.typ)
		if !strings.Contains(got, "38;5;"+tc.code+"m") {
			t.Errorf("RenderEventType(%s) = %q, want color %s", tc.typ, got, tc.code)
		}
	}
}

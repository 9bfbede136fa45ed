package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/timer"
)

// AlarmsMarkdown lays alarms out as a markdown table. pending maps alarm id
// to the number of armed notifications.
func AlarmsMarkdown(alarms []model.Alarm, pending map[string]int) string {
	if len(alarms) == 0 {
		return "_No alarms yet._\n"
	}

	var b strings.Builder
	b.WriteString("| Time | Title | Days | Verify after | Active | Armed | ID |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, a := range alarms {
		active := "off"
		if a.Active {
			active = "on"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %d | `%s` |\n",
			a.Time, escapeCell(a.Title), a.Weekdays.Describe(), a.VerificationDelay, active, pending[a.ID], a.ID)
	}
	return b.String()
}

// PendingMarkdown lays pending timers out as a markdown table, times shown
// in loc.
func PendingMarkdown(timers []timer.Timer, loc *time.Location) string {
	if len(timers) == 0 {
		return "_No pending notifications._\n"
	}

	var b strings.Builder
	b.WriteString("| Fires at | Type | Title | Alarm | Timer |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, t := range timers {
		fmt.Fprintf(&b, "| %s | %s | %s | `%s` | `%s` |\n",
			t.FireAt.In(loc).Format("Mon 2006-01-02 15:04"), t.Payload.Kind, escapeCell(t.Content.Title), t.Payload.AlarmID, t.ID)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderMarkdown renders markdown for the terminal. Without color, or if
// rendering fails, the source is returned as is.
func (f *Formatter) RenderMarkdown(content string) string {
	if !f.colored {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimSpace(rendered)
}

package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/habit-alarm/internal/completion"
	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/timer"
)

func TestGraphPlain(t *testing.T) {
	// Wednesday
	today := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	records := []model.Completion{
		{Date: "2024-06-03", Completed: true},
		{Date: "2024-06-04", Completed: false},
		{Date: "2024-05-27", Completed: true},
	}
	grid := completion.Contributions(records, today, 2)

	out := NewFormatter(false).Graph("Run", grid, today)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 9)

	assert.Equal(t, "Run", lines[0])
	assert.Equal(t, "S □ □", lines[1])
	assert.Equal(t, "M ■ ■", lines[2])
	assert.Equal(t, "T □ □", lines[3])
	assert.Equal(t, "W □ □", lines[4])
	assert.Equal(t, "T □ ·", lines[5])
	assert.Equal(t, "S □ ·", lines[7])
	assert.Equal(t, "2 days completed in the last 2 weeks", lines[8])
}

func TestAlarmsMarkdown(t *testing.T) {
	alarms := []model.Alarm{{
		ID:                "a1",
		Title:             "Stretch | breathe",
		Time:              model.TimeOfDay{Hour: 7, Minute: 5},
		Weekdays:          model.WorkingDays,
		VerificationDelay: "10 minutes",
		Active:            true,
	}}

	md := AlarmsMarkdown(alarms, map[string]int{"a1": 10})
	assert.Contains(t, md, "| 07:05 | Stretch \\| breathe | Weekdays | 10 minutes | on | 10 | `a1` |")
	assert.Equal(t, "_No alarms yet._\n", AlarmsMarkdown(nil, nil))
}

func TestPendingMarkdown(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	md := PendingMarkdown([]timer.Timer{{
		ID:      "t1",
		FireAt:  time.Date(2024, 6, 3, 5, 0, 0, 0, time.UTC),
		Payload: model.Payload{AlarmID: "a1", Kind: model.KindAlarm},
		Content: timer.ContentFor("Run", model.KindAlarm),
	}}, berlin)
	assert.Contains(t, md, "| Mon 2024-06-03 07:00 | alarm | Run | `a1` | `t1` |")
}

func TestRenderMarkdownPlainPassesThrough(t *testing.T) {
	assert.Equal(t, "# hi", NewFormatter(false).RenderMarkdown("# hi"))
}

func TestIsYes(t *testing.T) {
	assert.True(t, IsYes("y"))
	assert.True(t, IsYes(" YES "))
	assert.False(t, IsYes(""))
	assert.False(t, IsYes("nope"))
}

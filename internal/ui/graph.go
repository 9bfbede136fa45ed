package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/notexe/habit-alarm/internal/completion"
)

const (
	cellDone   = "■"
	cellMissed = "□"
	cellFuture = "·"
)

var dayLabels = [7]string{"S", "M", "T", "W", "T", "F", "S"}

// Graph renders a contribution grid: one row per weekday, one column per
// week, oldest week on the left. Days after today are drawn as dots.
func (f *Formatter) Graph(title string, grid [][]completion.Day, today time.Time) string {
	y, m, d := today.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, today.Location())

	var b strings.Builder
	b.WriteString(f.style(HeaderStyle, title))
	b.WriteString("\n")

	done := 0
	for wd := 0; wd < 7; wd++ {
		b.WriteString(f.style(DimStyle, dayLabels[wd]))
		for _, week := range grid {
			if wd >= len(week) {
				continue
			}
			day := week[wd]
			b.WriteString(" ")
			switch {
			case day.Date.After(end):
				b.WriteString(f.style(DimStyle, cellFuture))
			case day.Completed:
				done++
				b.WriteString(f.style(SuccessStyle, cellDone))
			default:
				b.WriteString(f.style(DimStyle, cellMissed))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(f.style(DimStyle, fmt.Sprintf("%d days completed in the last %d weeks", done, len(grid))))

	if !f.colored {
		return b.String()
	}
	return BoxStyle.Render(b.String())
}

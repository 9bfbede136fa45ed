package completion

import (
	"time"

	"github.com/notexe/habit-alarm/internal/model"
)

// DefaultWeeks is how many weeks the contribution grid covers.
const DefaultWeeks = 12

// Day is one cell of the contribution grid.
type Day struct {
	Date      time.Time
	Completed bool
}

// Contributions lays records out as weeks of seven days, Sunday first. The
// grid starts on the Sunday of the week (weeks-1) weeks before today.
func Contributions(records []model.Completion, today time.Time, weeks int) [][]Day {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}

	done := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Completed {
			done[r.Date] = true
		}
	}

	start := StartOfGrid(today, weeks)
	grid := make([][]Day, weeks)
	for w := range grid {
		grid[w] = make([]Day, 7)
		for d := range grid[w] {
			date := start.AddDate(0, 0, w*7+d)
			grid[w][d] = Day{Date: date, Completed: done[date.Format(model.DateLayout)]}
		}
	}
	return grid
}

// StartOfGrid returns midnight of the first Sunday shown in a grid of the
// given number of weeks ending in today's week.
func StartOfGrid(today time.Time, weeks int) time.Time {
	y, m, d := today.Date()
	back := (weeks-1)*7 + int(today.Weekday())
	return time.Date(y, m, d-back, 0, 0, 0, 0, today.Location())
}

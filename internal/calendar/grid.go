package calendar

import (
	"iter"
	"time"
)

// Cell is one slot in a month grid: a blank filler or a dated day.
type Cell struct {
	Day  int    `json:"day"`            // 0 for a blank cell
	Date string `json:"date,omitempty"` // YYYY-MM-DD, empty for a blank
}

// Blank reports whether the cell is a filler slot.
func (c Cell) Blank() bool { return c.Day == 0 }

// MonthGrid yields the cells of one month laid out in 7-wide rows:
// leading blanks up to the weekday of the 1st (Sunday-first), one cell
// per day of the month, then trailing blanks to complete the last row.
// The sequence never yields dates from adjacent months, and it can be
// ranged over any number of times.
func MonthGrid(year int, month time.Month) iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
		lead := int(first.Weekday())
		days := daysIn(year, month)

		for i := 0; i < lead; i++ {
			if !yield(Cell{}) {
				return
			}
		}
		for d := 1; d <= days; d++ {
			cell := Cell{
				Day:  d,
				Date: time.Date(year, month, d, 0, 0, 0, 0, time.Local).Format("2006-01-02"),
			}
			if !yield(cell) {
				return
			}
		}
		for i := (lead + days) % 7; i != 0 && i < 7; i++ {
			if !yield(Cell{}) {
				return
			}
		}
	}
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()
}

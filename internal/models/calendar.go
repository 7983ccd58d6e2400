package models

import (
	"fmt"
	"time"
)

// WeekdayHeaders are the calendar column titles, Sunday first.
var WeekdayHeaders = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// CalendarCursor is the month shown by the booking widget.
type CalendarCursor struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// CursorFor returns the cursor of the month containing t.
func CursorFor(t time.Time) CalendarCursor {
	return CalendarCursor{Year: t.Year(), Month: t.Month()}
}

// Shift moves the cursor by delta months. The day of month never takes part,
// so January 31st followed by "next" is always February.
func (c CalendarCursor) Shift(delta int) CalendarCursor {
	idx := c.Year*12 + int(c.Month-1) + delta
	return CalendarCursor{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

func (c CalendarCursor) Next() CalendarCursor { return c.Shift(1) }
func (c CalendarCursor) Prev() CalendarCursor { return c.Shift(-1) }

// Title renders the header, e.g. "October 2026".
func (c CalendarCursor) Title() string {
	return fmt.Sprintf("%s %d", c.Month, c.Year)
}

func (c CalendarCursor) IsZero() bool {
	return c.Year == 0 && c.Month == 0
}

// DayCell is one day of the rendered month.
type DayCell struct {
	Day      int       `json:"day"`
	Date     time.Time `json:"date"`
	Today    bool      `json:"today"`
	Disabled bool      `json:"disabled"`
}

// Key returns the YYYY-MM-DD form used by callbacks and request bodies.
func (d DayCell) Key() string {
	return d.Date.Format(DateLayout)
}

// MonthGrid is the calendar for one month. Blanks leading cells pad day 1
// under its weekday column; there is no trailing padding.
type MonthGrid struct {
	Year     int        `json:"year"`
	Month    time.Month `json:"month"`
	Title    string     `json:"title"`
	Weekdays []string   `json:"weekdays"`
	Blanks   int        `json:"blanks"`
	Days     []DayCell  `json:"days"`
}

// Selectable returns the cells a user may click.
func (g MonthGrid) Selectable() []DayCell {
	out := make([]DayCell, 0, len(g.Days))
	for _, d := range g.Days {
		if !d.Disabled {
			out = append(out, d)
		}
	}
	return out
}

// TimeSlot is a bookable start time. Slots are derived from the booking
// configuration and never stored on their own.
type TimeSlot struct {
	Label   string `json:"label"`
	Minutes int    `json:"minutes"` // minutes after midnight
}

const (
	DateLayout    = "2006-01-02"
	DisplayLayout = "Monday, January 2, 2006"
)

package availability

import (
	"fmt"
	"time"

	"consultdesk/internal/config"
	"consultdesk/internal/models"
	"consultdesk/internal/schedule"

	"github.com/go-playground/validator/v10"
)

// Engine computes the bookable calendar from a BookingConfig. It holds no
// per-visitor state: selections are passed in by the caller.
type Engine struct {
	cfg      config.BookingConfig
	loc      *time.Location
	clock    schedule.Clock
	validate *validator.Validate
}

func NewEngine(cfg config.BookingConfig, clock schedule.Clock) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.CalendarURL == "" {
		cfg.CalendarURL = config.DefaultCalendarURL
	}
	if cfg.EventTitle == "" {
		cfg.EventTitle = config.DefaultEventTitle
	}
	if cfg.MeetingPlace == "" {
		cfg.MeetingPlace = config.DefaultLocation
	}
	if clock == nil {
		clock = schedule.RealClock()
	}
	return &Engine{
		cfg:      cfg,
		loc:      cfg.Location(),
		clock:    clock,
		validate: newFormValidator(),
	}, nil
}

func (e *Engine) Config() config.BookingConfig {
	return e.cfg
}

// Now returns the current instant in the booking timezone.
func (e *Engine) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Today returns local midnight of the current day.
func (e *Engine) Today() time.Time {
	return midnight(e.Now())
}

// CurrentCursor is the month the widget opens on.
func (e *Engine) CurrentCursor() models.CalendarCursor {
	return models.CursorFor(e.Now())
}

type bounds struct {
	today time.Time
	min   time.Time
	max   time.Time
}

// bounds are taken from the clock on every call, so a long-open widget never
// renders stale availability. The lower bound is an exact instant (hours of
// notice) while the upper bound counts whole days; a day is compared by its
// midnight.
func (e *Engine) bounds() bounds {
	now := e.Now()
	today := midnight(now)
	return bounds{
		today: today,
		min:   now.Add(time.Duration(e.cfg.MinHoursNotice) * time.Hour),
		max:   today.AddDate(0, 0, e.cfg.DaysAheadToBook),
	}
}

func (e *Engine) selectable(day time.Time, b bounds) bool {
	if !e.cfg.IsWorkingDay(day.Weekday()) {
		return false
	}
	return !day.Before(b.min) && !day.After(b.max)
}

// RenderMonth returns the grid for the cursor month. Leading blanks align
// day 1 under its weekday (Sunday first); there is no trailing padding.
func (e *Engine) RenderMonth(cursor models.CalendarCursor) models.MonthGrid {
	if cursor.IsZero() {
		cursor = e.CurrentCursor()
	}
	b := e.bounds()

	first := time.Date(cursor.Year, cursor.Month, 1, 0, 0, 0, 0, e.loc)
	daysIn := first.AddDate(0, 1, -1).Day()

	grid := models.MonthGrid{
		Year:     cursor.Year,
		Month:    cursor.Month,
		Title:    cursor.Title(),
		Weekdays: models.WeekdayHeaders,
		Blanks:   int(first.Weekday()),
		Days:     make([]models.DayCell, 0, daysIn),
	}
	for d := 1; d <= daysIn; d++ {
		date := time.Date(cursor.Year, cursor.Month, d, 0, 0, 0, 0, e.loc)
		grid.Days = append(grid.Days, models.DayCell{
			Day:      d,
			Date:     date,
			Today:    date.Equal(b.today),
			Disabled: !e.selectable(date, b),
		})
	}
	return grid
}

// IsSelectable applies the same rule RenderMonth uses for the day containing
// date.
func (e *Engine) IsSelectable(date time.Time) bool {
	return e.selectable(midnight(date.In(e.loc)), e.bounds())
}

// ParseDate reads a YYYY-MM-DD key in the booking timezone.
func (e *Engine) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, s, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// SelectDate replaces the selected date, always clearing the time, and
// returns the slots offered for it. A disabled day leaves sel untouched.
func (e *Engine) SelectDate(sel *models.Selection, date time.Time) ([]models.TimeSlot, error) {
	day := midnight(date.In(e.loc))
	if !e.selectable(day, e.bounds()) {
		return nil, fmt.Errorf("%w: %s", ErrDateUnavailable, day.Format(models.DateLayout))
	}
	sel.Time = ""
	sel.Date = &day
	return e.Slots(), nil
}

// SelectTime replaces the selected slot. The label must be one of Slots.
func (e *Engine) SelectTime(sel *models.Selection, label string) error {
	if sel.Date == nil {
		return ErrNoDateSelected
	}
	for _, s := range e.Slots() {
		if s.Label == label {
			sel.Time = label
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSlot, label)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

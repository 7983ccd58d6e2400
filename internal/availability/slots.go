package availability

import (
	"fmt"
	"strings"
	"time"

	"consultdesk/internal/models"
)

const slotLayout = "3:04 PM"

// Slots lists the start times from StartHour up to (not including) EndHour.
// The list is the same for every selectable date.
func (e *Engine) Slots() []models.TimeSlot {
	start := e.cfg.StartHour * 60
	end := e.cfg.EndHour * 60

	slots := make([]models.TimeSlot, 0, (end-start+e.cfg.SlotInterval-1)/e.cfg.SlotInterval)
	for m := start; m < end; m += e.cfg.SlotInterval {
		slots = append(slots, models.TimeSlot{Label: FormatSlot(m), Minutes: m})
	}
	return slots
}

// FormatSlot renders minutes after midnight as a 12-hour label, e.g. 810 ->
// "1:30 PM".
func FormatSlot(minutes int) string {
	hours := minutes / 60
	period := "AM"
	if hours >= 12 {
		period = "PM"
	}
	display := hours % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minutes%60, period)
}

// ParseSlot converts a label produced by FormatSlot back to a 24-hour time.
func ParseSlot(label string) (hour, minute int, err error) {
	t, err := time.Parse(slotLayout, strings.TrimSpace(label))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlotLabel, label)
	}
	return t.Hour(), t.Minute(), nil
}

package availability

import "errors"

var (
	ErrInvalidConfig       = errors.New("invalid booking configuration")
	ErrDateUnavailable     = errors.New("date is not available for booking")
	ErrNoDateSelected      = errors.New("select a date first")
	ErrUnknownSlot         = errors.New("time slot is not offered")
	ErrIncompleteSelection = errors.New("date and time must both be selected")
	ErrInvalidSlotLabel    = errors.New("invalid time slot label")
	ErrInvalidDate         = errors.New("invalid date, expected YYYY-MM-DD")
)

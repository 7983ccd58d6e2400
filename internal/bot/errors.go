package bot

import (
	"errors"

	"consultdesk/internal/availability"
	"consultdesk/internal/dialogue"
	"consultdesk/internal/service"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var verrs availability.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "⚠️ " + verrs[0].Message + ". Please try again."
	}

	switch {
	case errors.Is(err, availability.ErrDateUnavailable):
		return "⚠️ This day is not available for booking. Please pick another date."
	case errors.Is(err, availability.ErrUnknownSlot):
		return "⚠️ This time is not offered. Please pick one of the listed times."
	case errors.Is(err, availability.ErrNoDateSelected), errors.Is(err, availability.ErrIncompleteSelection):
		return "⚠️ Please select a date and time first."
	case errors.Is(err, service.ErrBookingClosed), errors.Is(err, service.ErrFormNotStarted):
		return "⚠️ The booking calendar is closed. Send /book to open it."
	case errors.Is(err, service.ErrRateLimited):
		return msgSlowDown
	case errors.Is(err, dialogue.ErrUnknownService):
		return "⚠️ This service is no longer available. Send /services to see the list."
	case errors.Is(err, dialogue.ErrEmptyMessage):
		return "Please type a message."
	}

	return msgGenericError
}

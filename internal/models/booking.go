package models

import "time"

// Selection holds at most one date and one time slot. Picking a new date
// always drops the time.
type Selection struct {
	Date *time.Time `json:"date,omitempty"`
	Time string     `json:"time,omitempty"`
}

// Complete reports whether both the date and the time are chosen; only a
// complete selection may be submitted.
func (s Selection) Complete() bool {
	return s.Date != nil && s.Time != ""
}

func (s *Selection) Clear() {
	s.Date = nil
	s.Time = ""
}

// Summary is the line shown under the calendar.
func (s Selection) Summary() string {
	if !s.Complete() {
		return "Please select a date and time"
	}
	return s.Date.Format(DisplayLayout) + " at " + s.Time
}

// BookingForm is the contact form submitted together with a selection.
type BookingForm struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Company string `json:"company"`
	Service string `json:"service" validate:"required"`
	Message string `json:"message"`
}

// CalendarEvent is the hand-off to the external calendar provider.
type CalendarEvent struct {
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Details  string    `json:"details"`
	Location string    `json:"location"`
	URL      string    `json:"url"`
}

// BookingNotification is the payload given to the notification dispatch.
type BookingNotification struct {
	SessionID   string    `json:"session_id"`
	NotifyTo    string    `json:"notify_to"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Company     string    `json:"company"`
	Service     string    `json:"service"`
	Message     string    `json:"message"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	CalendarURL string    `json:"calendar_url"`
	SubmittedAt time.Time `json:"submitted_at"`
}

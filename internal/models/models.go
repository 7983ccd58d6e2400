package models

import "time"

// FormStep is the position of a step-by-step booking form (Telegram
// front-end); the web widget submits the form in one request.
type FormStep string

const (
	FormStepNone    FormStep = ""
	FormStepName    FormStep = "name"
	FormStepEmail   FormStep = "email"
	FormStepPhone   FormStep = "phone"
	FormStepCompany FormStep = "company"
	FormStepService FormStep = "service"
	FormStepMessage FormStep = "message"
)

// FormSteps is the order in which the form is collected.
var FormSteps = []FormStep{
	FormStepName, FormStepEmail, FormStepPhone,
	FormStepCompany, FormStepService, FormStepMessage,
}

// NextFormStep returns the step after s, or FormStepNone after the last one.
func NextFormStep(s FormStep) FormStep {
	for i, step := range FormSteps {
		if step == s && i+1 < len(FormSteps) {
			return FormSteps[i+1]
		}
	}
	return FormStepNone
}

// Optional reports whether the step may be skipped.
func (s FormStep) Optional() bool {
	return s == FormStepCompany || s == FormStepMessage
}

// Session is everything one visitor has open: the booking widget and the
// chat panel. It is owned by the session service and stored as JSON.
type Session struct {
	ID           string         `json:"id"`
	Channel      string         `json:"channel"`
	BookingOpen  bool           `json:"booking_open"`
	Cursor       CalendarCursor `json:"cursor"`
	Selection    Selection      `json:"selection"`
	Form         BookingForm    `json:"form"`
	FormStep     FormStep       `json:"form_step,omitempty"`
	Conversation Conversation   `json:"conversation"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ResetBooking returns the widget to its closed state: nothing selected and
// the cursor back on the current month.
func (s *Session) ResetBooking(now time.Time) {
	s.BookingOpen = false
	s.Selection.Clear()
	s.Cursor = CursorFor(now)
	s.Form = BookingForm{}
	s.FormStep = FormStepNone
}

// Availability is one exported calendar day.
type Availability struct {
	Date   time.Time  `json:"date"`
	Status string     `json:"status"`
	Slots  []TimeSlot `json:"slots,omitempty"`
}

package service

import (
	"time"

	"consultdesk/internal/models"
)

// BookingView is what the booking widget renders.
type BookingView struct {
	SessionID string            `json:"session_id"`
	Open      bool              `json:"open"`
	Grid      *models.MonthGrid `json:"grid,omitempty"`
	Selection models.Selection  `json:"selection"`
	Slots     []models.TimeSlot `json:"slots,omitempty"`
	Summary   string            `json:"summary"`
	CanSubmit bool              `json:"can_submit"`
	FormStep  models.FormStep   `json:"form_step,omitempty"`
}

// ChatView is what the chat panel renders. Delivered holds the messages that
// appeared during this call.
type ChatView struct {
	SessionID    string                   `json:"session_id"`
	Open         bool                     `json:"open"`
	State        models.ConversationState `json:"state"`
	Transcript   []models.ChatMessage     `json:"transcript"`
	Delivered    []models.ChatMessage     `json:"delivered,omitempty"`
	QuickReplies []string                 `json:"quick_replies,omitempty"`
	Composing    bool                     `json:"composing"`
	Pending      int                      `json:"pending"`
	NextChangeAt *time.Time               `json:"next_change_at,omitempty"`
	BookingOpen  bool                     `json:"booking_open"`
}

// SubmitResult is returned after a booking request was accepted.
type SubmitResult struct {
	Event        models.CalendarEvent       `json:"event"`
	Notification models.BookingNotification `json:"notification"`
}

// FormProgress reports the step-by-step form position after an answer.
type FormProgress struct {
	Step   models.FormStep `json:"step"`
	Done   bool            `json:"done"`
	Result *SubmitResult   `json:"result,omitempty"`
}

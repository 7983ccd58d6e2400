package models

import "time"

type ConversationState string

const (
	StateGreeting        ConversationState = "greeting"
	StateExploring       ConversationState = "exploring"
	StateNeedsAssessment ConversationState = "needs-assessment"
)

// Intent is the classification of one user message.
type Intent string

const (
	IntentNeedsHelp    Intent = "needs-help"
	IntentBranding     Intent = "branding"
	IntentSocial       Intent = "social"
	IntentVideo        Intent = "video"
	IntentBooking      Intent = "booking"
	IntentPricing      Intent = "pricing"
	IntentShowAll      Intent = "show-all"
	IntentUnrecognized Intent = "unrecognized"
)

type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// Action is a side effect carried by a bot message; it runs when the
// message is delivered.
type Action string

const (
	ActionNone        Action = ""
	ActionOpenBooking Action = "open_booking"
)

// Service is one entry of the catalog shown as a card.
type Service struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
}

// ChatMessage is a transcript entry. A bot message may carry service cards,
// quick replies or an action instead of (or in addition to) text.
type ChatMessage struct {
	Role         Role      `json:"role"`
	Text         string    `json:"text,omitempty"`
	Services     []Service `json:"services,omitempty"`
	QuickReplies []string  `json:"quick_replies,omitempty"`
	Action       Action    `json:"action,omitempty"`
	At           time.Time `json:"at"`
}

// ScheduledMessage is a bot message that is not visible yet. The typing
// indicator is shown from TypingAt until DueAt.
type ScheduledMessage struct {
	ChatMessage
	TypingAt time.Time `json:"typing_at"`
	DueAt    time.Time `json:"due_at"`
}

// Conversation is the chat panel state of one visitor.
type Conversation struct {
	State        ConversationState  `json:"state"`
	Needs        []Intent           `json:"needs,omitempty"`
	Transcript   []ChatMessage      `json:"transcript,omitempty"`
	Pending      []ScheduledMessage `json:"pending,omitempty"`
	QuickReplies []string           `json:"quick_replies,omitempty"`
	Open         bool               `json:"open"`
	Started      bool               `json:"started"`
}

// NewConversation returns a conversation in the greeting state.
func NewConversation() Conversation {
	return Conversation{State: StateGreeting}
}

// LastPendingAt returns the due time of the last queued message, or the zero
// time if nothing is queued.
func (c *Conversation) LastPendingAt() time.Time {
	if len(c.Pending) == 0 {
		return time.Time{}
	}
	return c.Pending[len(c.Pending)-1].DueAt
}

package dialogue

import (
	"errors"
	"strings"
	"time"

	"consultdesk/internal/config"
	"consultdesk/internal/models"
)

var ErrEmptyMessage = errors.New("message is empty")

// Engine runs the scripted conversation. It never reads a clock: callers
// pass the current instant, and every bot message is queued on the
// conversation with the time it starts typing and the time it appears.
type Engine struct {
	catalog     *Catalog
	botName     string
	typingDelay time.Duration
	inputDelay  time.Duration
}

func NewEngine(cfg config.ChatbotConfig, catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{
		catalog:     catalog,
		botName:     cfg.BotName,
		typingDelay: cfg.TypingDelay,
		inputDelay:  cfg.InputDelay,
	}
}

func (e *Engine) Catalog() *Catalog { return e.catalog }
func (e *Engine) BotName() string   { return e.botName }

// Open shows the panel and starts the conversation the first time.
func (e *Engine) Open(conv *models.Conversation, now time.Time) bool {
	conv.Open = true
	return e.Start(conv, now)
}

// Start queues the greeting if nothing has been said or queued yet.
func (e *Engine) Start(conv *models.Conversation, now time.Time) bool {
	if len(conv.Transcript) > 0 || len(conv.Pending) > 0 {
		return false
	}
	if conv.State == "" {
		conv.State = models.StateGreeting
	}
	conv.Started = true
	e.enqueue(conv, now, 0, e.greetingScript())
	return true
}

// Close hides the panel and cancels every message that has not appeared
// yet. It returns how many were dropped.
func (e *Engine) Close(conv *models.Conversation) int {
	dropped := len(conv.Pending)
	conv.Open = false
	conv.Pending = nil
	return dropped
}

// Respond records a user message (typed or a quick reply) and queues the
// scripted answer. Unrecognized input is answered with the catalog.
func (e *Engine) Respond(conv *models.Conversation, text string, now time.Time) (models.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if conv.State == "" {
		conv.State = models.StateGreeting
	}

	conv.Transcript = append(conv.Transcript, models.ChatMessage{Role: models.RoleUser, Text: text, At: now})
	conv.QuickReplies = nil

	intent := ClassifyIntent(text)
	conv.Needs = append(conv.Needs, intent)
	e.enqueue(conv, now, e.inputDelay, e.route(conv, intent))
	return intent, nil
}

// route picks the script for an intent. Booking, pricing and the catalog
// answer the same in every state; the state only matters for the first
// service question.
func (e *Engine) route(conv *models.Conversation, intent models.Intent) []step {
	switch intent {
	case models.IntentBooking:
		e.leaveGreeting(conv)
		return e.bookingScript()
	case models.IntentPricing:
		e.leaveGreeting(conv)
		return e.pricingScript()
	case models.IntentShowAll:
		e.leaveGreeting(conv)
		return e.showAllScript()
	}

	if conv.State == models.StateNeedsAssessment {
		if preface, ok := assessPreface[intent]; ok {
			return append([]step{say(0, preface)}, e.suggestionScript(intent)...)
		}
		return append([]step{say(0, MsgAssessOther)}, e.showAllScript()...)
	}

	switch intent {
	case models.IntentNeedsHelp:
		conv.State = models.StateNeedsAssessment
		return e.needsAssessmentScript()
	case models.IntentBranding, models.IntentSocial, models.IntentVideo:
		e.leaveGreeting(conv)
		return e.suggestionScript(intent)
	default:
		e.leaveGreeting(conv)
		return append([]step{say(0, MsgShowServices)}, e.showAllScript()...)
	}
}

func (e *Engine) leaveGreeting(conv *models.Conversation) {
	if conv.State == models.StateGreeting {
		conv.State = models.StateExploring
	}
}

// SelectService answers a click on a service card.
func (e *Engine) SelectService(conv *models.Conversation, key string, now time.Time) (models.Service, error) {
	s, err := e.catalog.Get(key)
	if err != nil {
		return models.Service{}, err
	}
	conv.Transcript = append(conv.Transcript, models.ChatMessage{
		Role: models.RoleUser,
		Text: "Tell me more about " + s.Name,
		At:   now,
	})
	e.enqueue(conv, now, 0, e.selectedScript(s))
	return s, nil
}

// enqueue schedules steps after whatever is already pending. A message
// starts typing its pause after the previous one started, but never before
// the previous one is shown, so indicators never overlap.
func (e *Engine) enqueue(conv *models.Conversation, now time.Time, lead time.Duration, steps []step) {
	prevTyping := now.Add(lead)
	prevDue := conv.LastPendingAt()
	for _, s := range steps {
		typing := prevTyping.Add(s.pause)
		if typing.Before(prevDue) {
			typing = prevDue
		}
		due := typing.Add(e.typingDelay)
		conv.Pending = append(conv.Pending, models.ScheduledMessage{
			ChatMessage: s.message,
			TypingAt:    typing,
			DueAt:       due,
		})
		prevTyping, prevDue = typing, due
	}
}

// Deliver moves every message due at now into the transcript and returns
// them. Quick replies become current when the message carrying them appears.
func (e *Engine) Deliver(conv *models.Conversation, now time.Time) []models.ChatMessage {
	n := 0
	for n < len(conv.Pending) && !conv.Pending[n].DueAt.After(now) {
		n++
	}
	if n == 0 {
		return nil
	}

	out := make([]models.ChatMessage, 0, n)
	for _, p := range conv.Pending[:n] {
		msg := p.ChatMessage
		msg.At = p.DueAt
		conv.Transcript = append(conv.Transcript, msg)
		if len(msg.QuickReplies) > 0 {
			conv.QuickReplies = msg.QuickReplies
		}
		out = append(out, msg)
	}
	if n == len(conv.Pending) {
		conv.Pending = nil
	} else {
		conv.Pending = append([]models.ScheduledMessage(nil), conv.Pending[n:]...)
	}
	return out
}

// Composing reports whether the typing indicator is visible at now.
func (e *Engine) Composing(conv *models.Conversation, now time.Time) bool {
	if len(conv.Pending) == 0 {
		return false
	}
	next := conv.Pending[0]
	return !now.Before(next.TypingAt) && now.Before(next.DueAt)
}

// NextChange returns the next instant at which the panel changes (typing
// starts or a message appears), or false when nothing is pending.
func (e *Engine) NextChange(conv *models.Conversation, now time.Time) (time.Time, bool) {
	if len(conv.Pending) == 0 {
		return time.Time{}, false
	}
	next := conv.Pending[0]
	if now.Before(next.TypingAt) {
		return next.TypingAt, true
	}
	return next.DueAt, true
}

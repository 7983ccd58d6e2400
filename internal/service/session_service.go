package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"consultdesk/internal/availability"
	"consultdesk/internal/config"
	"consultdesk/internal/dialogue"
	"consultdesk/internal/domain"
	"consultdesk/internal/events"
	"consultdesk/internal/metrics"
	"consultdesk/internal/models"
	"consultdesk/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrBookingClosed   = errors.New("booking widget is not open")
	ErrChatClosed      = errors.New("chat is not open")
	ErrRateLimited     = errors.New("too many messages, slow down")
	ErrFormNotStarted  = errors.New("booking form is not in progress")
)

// SkipAnswer leaves an optional form field empty.
const SkipAnswer = "-"

// SessionService owns visitor sessions and runs both engines against them.
// Every operation loads the session, mutates it and saves it under a
// per-session lock.
type SessionService struct {
	repo     domain.SessionRepository
	booking  *availability.Engine
	dialogue *dialogue.Engine
	events   domain.EventPublisher
	clock    schedule.Clock
	session  config.SessionConfig
	notifyTo string
	logger   *zerolog.Logger
	locks    *keyedMutex
}

func NewSessionService(
	repo domain.SessionRepository,
	booking *availability.Engine,
	dlg *dialogue.Engine,
	eventBus domain.EventPublisher,
	clock schedule.Clock,
	sessionCfg config.SessionConfig,
	logger *zerolog.Logger,
) *SessionService {
	if clock == nil {
		clock = schedule.RealClock()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SessionService{
		repo:     repo,
		booking:  booking,
		dialogue: dlg,
		events:   eventBus,
		clock:    clock,
		session:  sessionCfg,
		notifyTo: booking.Config().NotifyEmail,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

func (s *SessionService) Booking() *availability.Engine { return s.booking }
func (s *SessionService) Dialogue() *dialogue.Engine    { return s.dialogue }

func (s *SessionService) newSession(id, channel string) *models.Session {
	now := s.clock.Now()
	return &models.Session{
		ID:           id,
		Channel:      channel,
		Cursor:       s.booking.CurrentCursor(),
		Conversation: models.NewConversation(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Create starts a new session with a random id.
func (s *SessionService) Create(ctx context.Context, channel string) (*models.Session, error) {
	if channel == "" {
		channel = models.SessionChannelWeb
	}
	session := s.newSession(uuid.NewString(), channel)
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Debug().Str("session_id", session.ID).Str("channel", channel).Msg("session created")
	return session, nil
}

// Ensure returns the session with the given id, creating it if needed.
func (s *SessionService) Ensure(ctx context.Context, id, channel string) (*models.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}
	session = s.newSession(id, channel)
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.delete(ctx, id); err != nil {
		return err
	}
	s.publish(events.EventSessionClosed, events.SessionClosedPayload{SessionID: id, At: s.clock.Now()})
	return nil
}

func (s *SessionService) delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.repo.DeleteSession(ctx, id)
}

// raised is an event waiting for the save that makes it true.
type raised struct {
	eventType string
	payload   interface{}
}

// update runs fn on the stored session. Chat messages that became due are
// delivered before and after fn, so actions they carry apply in order.
// Events are published once the session is saved and its lock released.
//
// A failing fn does not undo delivery: the delivered messages are saved
// first and returned with the saved session alongside fn's error.
func (s *SessionService) update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, []models.ChatMessage, error) {
	session, delivered, saved, err := s.apply(ctx, id, fn)
	for _, ev := range saved {
		s.publish(ev.eventType, ev.payload)
	}
	return session, delivered, err
}

func (s *SessionService) apply(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, []models.ChatMessage, []raised, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if session == nil {
		return nil, nil, nil, ErrSessionNotFound
	}

	var pending []raised
	delivered := s.deliver(session, &pending)
	committed := 0
	if len(delivered) > 0 {
		if err := s.save(ctx, session); err != nil {
			return nil, nil, nil, err
		}
		committed = len(pending)
	}

	if err := fn(session); err != nil {
		if len(delivered) == 0 {
			return nil, nil, nil, err
		}
		stored, getErr := s.repo.GetSession(ctx, id)
		if getErr != nil {
			s.logger.Warn().Err(getErr).Str("session_id", id).Msg("reload session after failed update")
			stored = nil
		}
		return stored, delivered, pending[:committed], err
	}
	delivered = append(delivered, s.deliver(session, &pending)...)

	if err := s.save(ctx, session); err != nil {
		return nil, nil, pending[:committed], err
	}
	return session, delivered, pending, nil
}

func (s *SessionService) save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionService) deliver(session *models.Session, pending *[]raised) []models.ChatMessage {
	delivered := s.dialogue.Deliver(&session.Conversation, s.clock.Now())
	for _, msg := range delivered {
		if msg.Action == models.ActionOpenBooking {
			s.openBooking(session)
			*pending = append(*pending, raised{events.EventBookingHandoff, events.BookingHandoffPayload{
				SessionID: session.ID,
				Channel:   session.Channel,
				At:        msg.At,
			}})
		}
	}
	return delivered
}

func (s *SessionService) publish(eventType string, payload interface{}) {
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event handlers failed")
	}
}

// openBooking shows the widget with nothing selected on the current month.
func (s *SessionService) openBooking(session *models.Session) {
	session.ResetBooking(s.clock.Now())
	session.Cursor = s.booking.CurrentCursor()
	session.BookingOpen = true
}

func (s *SessionService) bookingView(session *models.Session) BookingView {
	v := BookingView{
		SessionID: session.ID,
		Open:      session.BookingOpen,
		Selection: session.Selection,
		Summary:   session.Selection.Summary(),
		CanSubmit: session.Selection.Complete(),
		FormStep:  session.FormStep,
	}
	if session.BookingOpen {
		grid := s.booking.RenderMonth(session.Cursor)
		metrics.IncCalendarRender()
		v.Grid = &grid
		if session.Selection.Date != nil {
			v.Slots = s.booking.Slots()
		}
	}
	return v
}

// chatResult keeps the panel of a failed operation when messages were
// delivered before the failure.
func (s *SessionService) chatResult(session *models.Session, delivered []models.ChatMessage, err error) (ChatView, error) {
	if session == nil {
		return ChatView{}, err
	}
	return s.chatView(session, delivered), err
}

func (s *SessionService) chatView(session *models.Session, delivered []models.ChatMessage) ChatView {
	now := s.clock.Now()
	conv := &session.Conversation
	v := ChatView{
		SessionID:    session.ID,
		Open:         conv.Open,
		State:        conv.State,
		Transcript:   conv.Transcript,
		Delivered:    delivered,
		QuickReplies: conv.QuickReplies,
		Composing:    s.dialogue.Composing(conv, now),
		Pending:      len(conv.Pending),
		BookingOpen:  session.BookingOpen,
	}
	if at, ok := s.dialogue.NextChange(conv, now); ok {
		v.NextChangeAt = &at
	}
	return v
}

func requireOpen(session *models.Session) error {
	if !session.BookingOpen {
		return ErrBookingClosed
	}
	return nil
}

// OpenBooking opens the widget on the current month with nothing selected.
func (s *SessionService) OpenBooking(ctx context.Context, id string) (BookingView, error) {
	session, _, err := s.update(ctx, id, func(session *models.Session) error {
		s.openBooking(session)
		return nil
	})
	if err != nil {
		return BookingView{}, err
	}
	return s.bookingView(session), nil
}

// CloseBooking resets the widget.
func (s *SessionService) CloseBooking(ctx context.Context, id string) (BookingView, error) {
	session, _, err := s.update(ctx, id, func(session *models.Session) error {
		session.ResetBooking(s.clock.Now())
		session.Cursor = s.booking.CurrentCursor()
		return nil
	})
	if err != nil {
		return BookingView{}, err
	}
	return s.bookingView(session), nil
}

func (s *SessionService) Calendar(ctx context.Context, id string) (BookingView, error) {
	session, _, err := s.update(ctx, id, requireOpen)
	if err != nil {
		return BookingView{}, err
	}
	return s.bookingView(session), nil
}

// ShiftMonth moves the cursor by delta months. The read-modify-write runs
// under the session lock, so concurrent clicks each apply exactly once.
func (s *SessionService) ShiftMonth(ctx context.Context, id string, delta int) (BookingView, error) {
	session, _, err := s.update(ctx, id, func(session *models.Session) error {
		if err := requireOpen(session); err != nil {
			return err
		}
		session.Cursor = session.Cursor.Shift(delta)
		return nil
	})
	if err != nil {
		return BookingView{}, err
	}
	return s.bookingView(session), nil
}

// SelectDate selects a YYYY-MM-DD day and clears any chosen time.
func (s *SessionService) SelectDate(ctx context.Context, id, day string) (BookingView, error) {
	date, err := s.booking.ParseDate(day)
	if err != nil {
		return BookingView{}, err
	}
	session, _, err := s.update(ctx, id, func(session *models.Session) error {
		if err := requireOpen(session); err != nil {
			return err
		}
		if _, err := s.booking.SelectDate(&session.Selection, date); err != nil {
			return err
		}
		session.FormStep = models.FormStepNone
		return nil
	})
	if err != nil {
		return BookingView{}, err
	}
	return s.bookingView(session), nil
}

func (s *SessionService) SelectTime(ctx context.Context, id, label string) (BookingView, error) {
	session, _, err := s.update(ctx, id, func(session *models.Session) error {
		if err := requireOpen(session); err != nil {
			return err
		}
		return s.booking.SelectTime(&session.Selection, label)
	})
	if err != nil {
		return BookingView{}, err
	}
	return s.bookingView(session), nil
}

// Submit validates the form, builds the calendar link, publishes the booking
// request and resets the widget.
func (s *SessionService) Submit(ctx context.Context, id string, form models.BookingForm) (*SubmitResult, error) {
	var result *SubmitResult
	_, _, err := s.update(ctx, id, func(session *models.Session) error {
		if err := requireOpen(session); err != nil {
			return err
		}
		r, err := s.submit(session, form)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SessionService) submit(session *models.Session, form models.BookingForm) (*SubmitResult, error) {
	if !session.Selection.Complete() {
		return nil, availability.ErrIncompleteSelection
	}
	form = availability.NormalizeForm(form)
	if err := s.booking.ValidateForm(form); err != nil {
		return nil, err
	}
	ev, err := s.booking.BuildCalendarEvent(session.Selection, form)
	if err != nil {
		return nil, err
	}
	n := s.booking.Notification(session.ID, session.Selection, form, ev, s.notifyTo)

	if err := s.events.PublishJSON(events.EventBookingSubmitted, events.BookingSubmittedPayload{
		Notification: n,
		Start:        ev.Start,
		End:          ev.End,
	}); err != nil {
		return nil, fmt.Errorf("dispatch booking notification: %w", err)
	}
	metrics.IncBookingSubmitted(session.Channel)
	s.logger.Info().
		Str("session_id", session.ID).
		Str("service", form.Service).
		Str("date", n.Date).
		Str("time", n.Time).
		Msg("booking request submitted")

	session.ResetBooking(s.clock.Now())
	session.Cursor = s.booking.CurrentCursor()
	return &SubmitResult{Event: ev, Notification: n}, nil
}

// StartForm begins the step-by-step form once a date and time are chosen.
func (s *SessionService) StartForm(ctx context.Context, id string) (models.FormStep, error) {
	session, _, err := s.update(ctx, id, func(session *models.Session) error {
		if err := requireOpen(session); err != nil {
			return err
		}
		if !session.Selection.Complete() {
			return availability.ErrIncompleteSelection
		}
		session.Form = models.BookingForm{}
		session.FormStep = models.FormSteps[0]
		return nil
	})
	if err != nil {
		return models.FormStepNone, err
	}
	return session.FormStep, nil
}

// FormInput stores the answer to the current step. After the last step the
// booking is submitted.
func (s *SessionService) FormInput(ctx context.Context, id, value string) (FormProgress, error) {
	var progress FormProgress
	_, _, err := s.update(ctx, id, func(session *models.Session) error {
		step := session.FormStep
		if !session.BookingOpen || step == models.FormStepNone {
			return ErrFormNotStarted
		}
		value = strings.TrimSpace(value)
		if step.Optional() && value == SkipAnswer {
			value = ""
		}
		if err := s.booking.ValidateField(step, value); err != nil {
			progress.Step = step
			return err
		}
		setFormField(&session.Form, step, value)

		next := models.NextFormStep(step)
		if next != models.FormStepNone {
			session.FormStep = next
			progress.Step = next
			return nil
		}
		result, err := s.submit(session, session.Form)
		if err != nil {
			return err
		}
		progress = FormProgress{Done: true, Result: result}
		return nil
	})
	if err != nil {
		return progress, err
	}
	return progress, nil
}

func setFormField(form *models.BookingForm, step models.FormStep, value string) {
	switch step {
	case models.FormStepName:
		form.Name = value
	case models.FormStepEmail:
		form.Email = value
	case models.FormStepPhone:
		form.Phone = value
	case models.FormStepCompany:
		form.Company = value
	case models.FormStepService:
		form.Service = value
	case models.FormStepMessage:
		form.Message = value
	}
}

// OpenChat shows the chat panel; the greeting starts on the first open.
func (s *SessionService) OpenChat(ctx context.Context, id string) (ChatView, error) {
	session, delivered, err := s.update(ctx, id, func(session *models.Session) error {
		s.dialogue.Open(&session.Conversation, s.clock.Now())
		return nil
	})
	return s.chatResult(session, delivered, err)
}

// CloseChat hides the panel and cancels queued bot messages.
func (s *SessionService) CloseChat(ctx context.Context, id string) (ChatView, error) {
	session, delivered, err := s.update(ctx, id, func(session *models.Session) error {
		if n := s.dialogue.Close(&session.Conversation); n > 0 {
			s.logger.Debug().Str("session_id", session.ID).Int("dropped", n).Msg("pending chat messages canceled")
		}
		return nil
	})
	return s.chatResult(session, delivered, err)
}

// ChatView delivers due messages and returns the panel.
func (s *SessionService) ChatView(ctx context.Context, id string) (ChatView, error) {
	session, delivered, err := s.update(ctx, id, func(*models.Session) error { return nil })
	return s.chatResult(session, delivered, err)
}

// SendMessage handles typed text and quick-reply clicks alike.
func (s *SessionService) SendMessage(ctx context.Context, id, text string) (ChatView, error) {
	if err := s.CheckRateLimit(ctx, "chat:"+id); err != nil {
		return ChatView{}, err
	}
	var classified *events.ChatIntentPayload
	session, delivered, err := s.update(ctx, id, func(session *models.Session) error {
		if !session.Conversation.Open {
			return ErrChatClosed
		}
		now := s.clock.Now()
		intent, err := s.dialogue.Respond(&session.Conversation, text, now)
		if err != nil {
			return err
		}
		classified = &events.ChatIntentPayload{
			SessionID: session.ID,
			Intent:    intent,
			State:     session.Conversation.State,
			At:        now,
		}
		return nil
	})
	if err == nil && classified != nil {
		s.publish(events.EventChatIntent, *classified)
	}
	return s.chatResult(session, delivered, err)
}

// SelectService handles a click on a service card.
func (s *SessionService) SelectService(ctx context.Context, id, key string) (ChatView, error) {
	session, delivered, err := s.update(ctx, id, func(session *models.Session) error {
		if !session.Conversation.Open {
			return ErrChatClosed
		}
		_, err := s.dialogue.SelectService(&session.Conversation, key, s.clock.Now())
		return err
	})
	return s.chatResult(session, delivered, err)
}

// CheckRateLimit returns ErrRateLimited once key exceeds the configured
// message budget.
func (s *SessionService) CheckRateLimit(ctx context.Context, key string) error {
	if s.session.RateLimitMessages <= 0 {
		return nil
	}
	window := s.session.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	allowed, err := s.repo.CheckRateLimit(ctx, key, s.session.RateLimitMessages, window)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

package bot

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"consultdesk/internal/models"
	"consultdesk/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const cbService = "service:"

func (b *Bot) startChat(ctx context.Context, chatID int64) {
	if _, err := b.ensureSession(ctx, chatID); err != nil {
		b.fail(chatID, err)
		return
	}
	view, err := b.sessions.OpenChat(ctx, sessionID(chatID))
	if err != nil {
		b.fail(chatID, err)
		return
	}
	b.present(ctx, chatID, view)
}

func (b *Bot) stopChat(ctx context.Context, chatID int64) {
	b.queue(chatID).Cancel()
	if _, err := b.sessions.CloseChat(ctx, sessionID(chatID)); err != nil {
		b.fail(chatID, err)
		return
	}
	if _, err := b.tg.SendWithReplies(chatID, "Chat closed. Send /start to talk again.", nil); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// handleText routes free text: form answers while the step form runs,
// otherwise the scripted chat. A closed chat is reopened first.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	session, err := b.ensureSession(ctx, chatID)
	if err != nil {
		b.fail(chatID, err)
		return
	}
	if session.BookingOpen && session.FormStep != models.FormStepNone {
		b.handleFormInput(ctx, chatID, text)
		return
	}

	id := sessionID(chatID)
	view, err := b.sessions.SendMessage(ctx, id, text)
	if errors.Is(err, service.ErrChatClosed) {
		if _, err = b.sessions.OpenChat(ctx, id); err == nil {
			view, err = b.sessions.SendMessage(ctx, id, text)
		}
	}
	if err != nil {
		b.presentPartial(ctx, chatID, view)
		b.fail(chatID, err)
		return
	}
	b.present(ctx, chatID, view)
}

func (b *Bot) selectService(ctx context.Context, chatID int64, key string) error {
	view, err := b.sessions.SelectService(ctx, sessionID(chatID), key)
	if errors.Is(err, service.ErrChatClosed) {
		if _, err = b.sessions.OpenChat(ctx, sessionID(chatID)); err == nil {
			view, err = b.sessions.SelectService(ctx, sessionID(chatID), key)
		}
	}
	if err != nil {
		b.presentPartial(ctx, chatID, view)
		return err
	}
	b.present(ctx, chatID, view)
	return nil
}

// present sends what became visible and schedules the next change of the
// panel on the chat queue.
func (b *Bot) present(ctx context.Context, chatID int64, view service.ChatView) {
	handoff := false
	for _, m := range view.Delivered {
		b.sendChatMessage(chatID, m)
		if m.Action == models.ActionOpenBooking {
			handoff = true
		}
	}
	if handoff {
		b.showCalendar(ctx, chatID)
	}
	b.plan(chatID, view)
}

// presentPartial sends messages that were delivered before an operation
// failed.
func (b *Bot) presentPartial(ctx context.Context, chatID int64, view service.ChatView) {
	if len(view.Delivered) > 0 {
		b.present(ctx, chatID, view)
	}
}

func (b *Bot) plan(chatID int64, view service.ChatView) {
	q := b.queue(chatID)
	q.Cancel()
	if view.NextChangeAt == nil {
		return
	}
	q.Schedule(*view.NextChangeAt, func() { b.tick(chatID) })
}

// tick runs on the chat queue at the instant typing starts or a message
// becomes due.
func (b *Bot) tick(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	view, err := b.sessions.ChatView(ctx, sessionID(chatID))
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to refresh chat")
		return
	}
	if view.Composing {
		if err := b.tg.SendTyping(chatID); err != nil {
			b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send typing action")
		}
	}
	b.present(ctx, chatID, view)
}

func (b *Bot) sendChatMessage(chatID int64, m models.ChatMessage) {
	if b.metrics != nil {
		b.metrics.MessagesDelivered.Inc()
	}
	if len(m.Services) > 0 {
		b.sendServiceCards(chatID, m.Text, m.Services)
		return
	}
	if _, err := b.tg.SendWithReplies(chatID, m.Text, m.QuickReplies); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send chat message")
	}
}

func (b *Bot) showServices(chatID int64) {
	b.sendServiceCards(chatID, msgServicesHeader, b.sessions.Dialogue().Catalog().All())
}

func (b *Bot) sendServiceCards(chatID int64, header string, services []models.Service) {
	var text strings.Builder
	if header != "" {
		text.WriteString(html.EscapeString(header))
		text.WriteString("\n\n")
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services))
	for _, s := range services {
		text.WriteString("<b>" + html.EscapeString(s.Name) + "</b>\n")
		text.WriteString(html.EscapeString(s.Description) + "\n\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, cbService+s.Key),
		))
	}

	if _, err := b.tg.SendHTML(chatID, strings.TrimSpace(text.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send service cards")
	}
}

// fail reports an error to the user; unexpected errors are logged too.
func (b *Bot) fail(chatID int64, err error) {
	msg := b.getErrorMessage(err)
	if msg == msgGenericError {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Update handling failed")
	}
	b.send(chatID, msg)
}

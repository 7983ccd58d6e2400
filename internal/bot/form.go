package bot

import (
	"context"
	"errors"
	"fmt"

	"consultdesk/internal/availability"
	"consultdesk/internal/models"
	"consultdesk/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) askFormStep(chatID int64, step models.FormStep) {
	var replies []string
	switch {
	case step == models.FormStepService:
		for _, s := range b.sessions.Dialogue().Catalog().All() {
			replies = append(replies, s.Name)
		}
	case step.Optional():
		replies = []string{service.SkipAnswer}
	}

	if _, err := b.tg.SendWithReplies(chatID, formPrompts[string(step)], replies); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Str("step", string(step)).Msg("Failed to send form prompt")
	}
}

func (b *Bot) handleFormInput(ctx context.Context, chatID int64, text string) {
	progress, err := b.sessions.FormInput(ctx, sessionID(chatID), text)
	if err != nil {
		b.fail(chatID, err)
		var verrs availability.ValidationErrors
		if errors.As(err, &verrs) && progress.Step != models.FormStepNone {
			b.askFormStep(chatID, progress.Step)
		}
		return
	}
	if !progress.Done {
		b.askFormStep(chatID, progress.Step)
		return
	}
	b.sendBookingDone(chatID, progress.Result)
}

func (b *Bot) sendBookingDone(chatID int64, result *service.SubmitResult) {
	n := result.Notification
	text := fmt.Sprintf(msgBookingDone, n.Name, n.Date, n.Time)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(msgAddToCalendar, result.Event.URL)),
	)
	if _, err := b.tg.SendWithInlineKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send booking confirmation")
	}
}

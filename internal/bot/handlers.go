package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		zerolog.Ctx(ctx).Debug().Str("command", msg.Command()).Int64("chat_id", chatID).Msg("Command received")
		switch msg.Command() {
		case "start":
			b.startChat(ctx, chatID)
		case "book":
			b.openBooking(ctx, chatID)
		case "cancel":
			b.closeBooking(ctx, chatID)
		case "services":
			b.showServices(chatID)
		case "stop":
			b.stopChat(ctx, chatID)
		case "export":
			b.handleExport(chatID)
		default:
			b.send(chatID, msgHelp)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	b.handleText(ctx, chatID, text)
}

func (b *Bot) handleExport(chatID int64) {
	if !b.isOwner(chatID) {
		b.send(chatID, msgOwnerOnly)
		return
	}
	path, err := b.exporter.Save(0)
	if err != nil {
		b.fail(chatID, err)
		return
	}
	if _, err := b.tg.SendDocument(chatID, path, msgExportCaption); err != nil {
		b.logger.Error().Err(err).Str("path", path).Msg("Failed to send export")
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	data := cq.Data

	var err error
	switch {
	case data == cbNoop:
	case data == cbPrev:
		err = b.shiftMonth(ctx, chatID, messageID, -1)
	case data == cbNext:
		err = b.shiftMonth(ctx, chatID, messageID, 1)
	case data == cbShow:
		err = b.redrawCalendar(ctx, chatID, messageID)
	case data == cbClose:
		b.closeBooking(ctx, chatID)
	case strings.HasPrefix(data, cbDate):
		err = b.selectDate(ctx, chatID, messageID, strings.TrimPrefix(data, cbDate))
	case strings.HasPrefix(data, cbTime):
		err = b.selectTime(ctx, chatID, messageID, strings.TrimPrefix(data, cbTime))
	case strings.HasPrefix(data, cbService):
		if _, err = b.ensureSession(ctx, chatID); err == nil {
			err = b.selectService(ctx, chatID, strings.TrimPrefix(data, cbService))
		}
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown callback")
	}

	var answer string
	if err != nil {
		answer = b.getErrorMessage(err)
		if answer == msgGenericError {
			b.fail(chatID, err)
		}
	}
	if aerr := b.tg.AnswerCallback(cq.ID, answer); aerr != nil {
		b.logger.Warn().Err(aerr).Msg("Failed to answer callback")
	}
}

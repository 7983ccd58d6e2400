package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"consultdesk/internal/domain"
	"consultdesk/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var ErrUnknownChannel = errors.New("unknown notification channel")

// SheetsNotifier records each request as a spreadsheet row.
type SheetsNotifier struct {
	writer domain.SheetsWriter
}

func NewSheetsNotifier(writer domain.SheetsWriter) *SheetsNotifier {
	return &SheetsNotifier{writer: writer}
}

func (n *SheetsNotifier) Channel() string { return models.ChannelSheets }

func (n *SheetsNotifier) Notify(ctx context.Context, b *models.BookingNotification) error {
	return n.writer.AppendBookingRequest(ctx, b)
}

// LogNotifier writes the request to the application log. It is the default
// channel when nothing else is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Channel() string { return models.ChannelLog }

func (n *LogNotifier) Notify(_ context.Context, b *models.BookingNotification) error {
	n.logger.Info().
		Str("session_id", b.SessionID).
		Str("notify_to", b.NotifyTo).
		Str("name", b.Name).
		Str("email", b.Email).
		Str("phone", b.Phone).
		Str("company", b.Company).
		Str("service", b.Service).
		Str("date", b.Date).
		Str("time", b.Time).
		Str("calendar_url", b.CalendarURL).
		Msg("booking request received")
	return nil
}

// TelegramNotifier posts each request to the studio owner's chat.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) Channel() string { return models.ChannelTelegram }

func (n *TelegramNotifier) Notify(_ context.Context, b *models.BookingNotification) error {
	if n.chatID == 0 {
		return errors.New("telegram owner chat is not configured")
	}

	var text strings.Builder
	text.WriteString("📅 <b>New consultation request</b>\n\n")
	for _, r := range requestFields(b) {
		fmt.Fprintf(&text, "<b>%s:</b> %s\n", r[0], html.EscapeString(r[1]))
	}

	msg := tgbotapi.NewMessage(n.chatID, text.String())
	msg.ParseMode = models.ParseModeHTML
	msg.DisableWebPagePreview = true
	if b.CalendarURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Add to calendar", b.CalendarURL)),
		)
	}
	_, err := n.bot.Send(msg)
	return err
}

// Registry resolves notifiers by channel name.
type Registry struct {
	notifiers map[string]domain.Notifier
}

func NewRegistry(notifiers ...domain.Notifier) *Registry {
	r := &Registry{notifiers: make(map[string]domain.Notifier)}
	for _, n := range notifiers {
		if n != nil {
			r.notifiers[n.Channel()] = n
		}
	}
	return r
}

func (r *Registry) Get(channel string) (domain.Notifier, error) {
	n, ok := r.notifiers[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return n, nil
}

// Channels returns the subset of want that has a notifier, in order.
func (r *Registry) Channels(want []string) []string {
	var out []string
	for _, c := range want {
		if _, ok := r.notifiers[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

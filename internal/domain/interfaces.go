package domain

import (
	"context"
	"time"

	"consultdesk/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SessionRepository stores visitor sessions. GetSession returns nil, nil for
// an unknown or expired id.
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers a booking request over one channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, n *models.BookingNotification) error
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]*models.OutboxTask, error)
	ClaimOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error)
	RequeueProcessingOutboxTasks(ctx context.Context) (int64, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error
}

type NotificationQueue interface {
	Enqueue(ctx context.Context, n *models.BookingNotification) error
}

type SheetsWriter interface {
	AppendBookingRequest(ctx context.Context, n *models.BookingNotification) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// TelegramService is what the chat front-end needs from the bot API.
type TelegramService interface {
	TelegramSender
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string, markup interface{}) (tgbotapi.Message, error)
	SendWithReplies(chatID int64, text string, replies []string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID, text string) error
	SendTyping(chatID int64) error
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
}

package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"consultdesk/internal/domain"
	"consultdesk/internal/export"
	"consultdesk/internal/models"
	"consultdesk/internal/schedule"
	"consultdesk/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bot is the Telegram front-end. Each chat owns one session; scripted bot
// messages are delivered by a per-chat queue so typing pauses survive
// between updates.
type Bot struct {
	tg          domain.TelegramService
	sessions    *service.SessionService
	exporter    *export.Exporter
	clock       schedule.Clock
	ownerChatID int64
	metrics     *Metrics
	logger      *zerolog.Logger

	mu    sync.Mutex
	chats map[int64]*schedule.Queue
}

func NewBot(
	tg domain.TelegramService,
	sessions *service.SessionService,
	exporter *export.Exporter,
	clock schedule.Clock,
	ownerChatID int64,
	metrics *Metrics,
	logger *zerolog.Logger,
) *Bot {
	if clock == nil {
		clock = schedule.RealClock()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Bot{
		tg:          tg,
		sessions:    sessions,
		exporter:    exporter,
		clock:       clock,
		ownerChatID: ownerChatID,
		metrics:     metrics,
		logger:      logger,
		chats:       make(map[int64]*schedule.Queue),
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.cancelAll()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	kind := updateKind(update)
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdatesProcessed.WithLabelValues(kind).Inc()
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(&l, kind, func() {
		var userID, chatID int64
		switch {
		case update.Message != nil && update.Message.From != nil:
			userID, chatID = update.Message.From.ID, update.Message.Chat.ID
		case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
			userID, chatID = update.CallbackQuery.From.ID, update.CallbackQuery.Message.Chat.ID
		}
		if userID == 0 {
			return
		}

		if !b.isOwner(chatID) {
			if err := b.sessions.CheckRateLimit(updateCtx, fmt.Sprintf("tg:%d", userID)); err != nil {
				l.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
				if update.Message != nil {
					b.send(chatID, msgSlowDown)
				}
				return
			}
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
			return
		}
		b.handleMessage(updateCtx, update.Message)
	})
}

func updateKind(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil:
		return "message"
	default:
		return "other"
	}
}

func (b *Bot) isOwner(chatID int64) bool {
	return b.ownerChatID != 0 && chatID == b.ownerChatID
}

// sessionID maps a chat to its session. Sessions expire with the store TTL
// and are recreated on the next update.
func sessionID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

func (b *Bot) ensureSession(ctx context.Context, chatID int64) (*models.Session, error) {
	return b.sessions.Ensure(ctx, sessionID(chatID), models.SessionChannelTelegram)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.tg.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) queue(chatID int64) *schedule.Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.chats[chatID]
	if !ok {
		q = schedule.NewQueue(b.clock)
		b.chats[chatID] = q
	}
	return q
}

func (b *Bot) cancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.chats {
		q.Cancel()
	}
}

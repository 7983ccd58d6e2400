package bot

import (
	"errors"
	"fmt"

	"consultdesk/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotWrapper adapts *tgbotapi.BotAPI to domain.TelegramSender.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func NewBotWrapper(bot *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: bot}
}

// Connect authorizes the bot token against the Telegram API.
func Connect(cfg config.TelegramConfig) (*BotWrapper, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram.bot_token is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	return NewBotWrapper(api), nil
}

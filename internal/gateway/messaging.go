package gateway

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramMessenger sends chat messages through the bot API.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramMessenger authenticates the bot with token.
func NewTelegramMessenger(token string) (*TelegramMessenger, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramMessenger{bot: bot}, nil
}

// NewTelegramMessengerWithEndpoint is NewTelegramMessenger against a custom
// API endpoint such as a local bot API server.
func NewTelegramMessengerWithEndpoint(token, endpoint string, client tgbotapi.HTTPClient) (*TelegramMessenger, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramMessenger{bot: bot}, nil
}

// SendMessage sends text to chatID. The bot API client has no context
// support, so ctx is only checked before the call.
func (m *TelegramMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/looprun"
	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// Telegram notifies one chat of a loop's terminal state over the
// Telegram Bot API. It never polls for updates; hatloop only pushes.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegram builds a Telegram notifier from a bot token and target
// chat ID, both read from config/env at startup.
func NewTelegram(botToken string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, apperrors.NewConfigError("create telegram bot", err)
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// NotifyTerminal sends a one-line status message for loopID's terminal
// state. context cancellation is not honored mid-send; the bot API call
// itself is synchronous and short.
func (t *Telegram) NotifyTerminal(_ context.Context, loopID string, state looprun.State, reason string) error {
	icon := stateIcon(state)
	text := fmt.Sprintf("%s loop %s: %s", icon, loopID, state)
	if reason != "" {
		text += fmt.Sprintf(" (%s)", reason)
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("telegram notification failed", zap.String("loop_id", loopID), zap.Error(err))
		return apperrors.NewIoError("send telegram notification", err)
	}
	return nil
}

func stateIcon(state looprun.State) string {
	switch state {
	case looprun.StateCompleted:
		return "✅"
	case looprun.StateFailed, looprun.StateAborted:
		return "❌"
	case looprun.StateTimedOut:
		return "⏱"
	default:
		return "•"
	}
}

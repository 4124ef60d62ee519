package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/luoli523/x-monitor/internal/models"
)

// telegramMessageLimit is Telegram's hard per-message character limit.
const telegramMessageLimit = 4096

// TelegramNotifier sends the summary to a single chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
	log    *slog.Logger
}

func NewTelegramNotifier(token, chatID string, log *slog.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramNotifier{bot: b, chatID: chatID, log: log}, nil
}

func (n *TelegramNotifier) Name() string {
	return "telegram"
}

func (n *TelegramNotifier) Send(ctx context.Context, summary *models.Summary) error {
	chunks := splitMessage(renderText(summary), telegramMessageLimit)

	for i, chunk := range chunks {
		if _, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: n.chatID,
			Text:   chunk,
		}); err != nil {
			return fmt.Errorf("send message %d/%d: %w", i+1, len(chunks), err)
		}
	}

	n.log.InfoContext(ctx, "Summary sent to Telegram",
		"chatID", n.chatID,
		"messageCount", len(chunks))

	return nil
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const MaxMessageLen = 4096

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// sendMarkdown sends text as Markdown and falls back to plain text if
// Telegram rejects the formatting.
func sendMarkdown(ctx context.Context, s messageSender, chatID int64, threadID int, text string) error {
	params := &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            truncate(text, MaxMessageLen),
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: threadID,
	}
	if _, err := s.SendMessage(ctx, params); err != nil {
		slog.Warn("markdown send failed, falling back to plain text", "error", err)
		params.ParseMode = ""
		if _, err := s.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

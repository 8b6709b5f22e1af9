package notify

import (
	"context"
	"fmt"
)

// telegramAPIBase is overridden in tests.
var telegramAPIBase = "https://api.telegram.org"

// Telegram posts messages through the Bot API with HTML parse mode. The
// report text is already formatted, so an empty title sends it as is.
type Telegram struct{ BotToken, ChatID string }

func (t *Telegram) Name() string { return "Telegram" }

func (t *Telegram) Send(ctx context.Context, title, message string) error {
	text := message
	if title != "" {
		text = fmt.Sprintf("<b>%s</b>\n%s", title, message)
	}
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.BotToken)
	payload := map[string]string{"chat_id": t.ChatID, "text": text, "parse_mode": "HTML"}
	return postJSON(ctx, apiURL, payload)
}

// Slack mirrors the report into a webhook channel.
type Slack struct {
	WebhookURL string
}

func (s *Slack) Name() string { return "Slack" }

func (s *Slack) Send(ctx context.Context, title, message string) error {
	text := message
	if title != "" {
		text = fmt.Sprintf("*%s*\n%s", title, message)
	}
	payload := map[string]string{"text": text}
	return postJSON(ctx, s.WebhookURL, payload)
}

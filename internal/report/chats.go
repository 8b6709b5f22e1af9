package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
)

// dialogMessageDepth is how many of a dialog's newest messages are inspected
// for an unanswered customer message.
const dialogMessageDepth = 5

// chatsSection builds section 4: active dialogs with a customer message that
// arrived at or after 19:00 MSK of the report day. Message fetches fan out
// with a bounded number of workers.
func (b *Builder) chatsSection(ctx context.Context, day time.Time) []string {
	lines := []string{"4. Чаты проверены"}

	dialogs, err := b.Chats.ActiveDialogs(ctx, b.MaxDialogs)
	if err != nil {
		b.log.Error().Err(err).Msg("fetch dialogs")
		metrics.IncAPIFailure("botapi")
		return append(lines, "Не удалось получить данные о чатах.")
	}

	cutoff := timeutil.EveningCutoff(day)

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, b.MaxConcurrentChecks)
		mu       sync.Mutex
		awaiting int
	)
	for _, dialog := range dialogs {
		if dialog.ChatID == 0 {
			continue
		}
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if b.dialogAwaitsReply(ctx, chatID, cutoff) {
				mu.Lock()
				awaiting++
				mu.Unlock()
			}
		}(dialog.ChatID)
	}
	wg.Wait()

	return append(lines, fmt.Sprintf("Поступили после 19:00: %d чата ожидают ответа", awaiting))
}

// dialogAwaitsReply reports whether the dialog's latest messages include a
// customer message at or after the cutoff. Fetch failures count as "no":
// a flaky Bot API must not inflate the backlog.
func (b *Builder) dialogAwaitsReply(ctx context.Context, chatID int64, cutoff time.Time) bool {
	messages, err := b.Chats.DialogMessages(ctx, chatID, dialogMessageDepth)
	if err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("fetch dialog messages failed")
		metrics.IncAPIFailure("botapi")
		return false
	}
	for _, msg := range messages {
		if !msg.FromCustomer() || msg.CreatedAt == "" {
			continue
		}
		at, err := timeutil.ParseISOTime(msg.CreatedAt)
		if err != nil {
			continue
		}
		if !at.Before(cutoff) {
			return true
		}
	}
	return false
}

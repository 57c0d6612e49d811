package notifier

import (
	"context"

	"github.com/pkg/errors"
	"gopkg.in/telebot.v3"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
	domainTelegram "attendance_bot/internal/domain/telegram"
)

// Telegram sends the event to one chat.
type Telegram struct {
	client domainTelegram.Client
	chatID int64
}

func NewTelegram(client domainTelegram.Client, chatID int64) *Telegram {
	return &Telegram{client: client, chatID: chatID}
}

func (t *Telegram) Kind() notification.Kind {
	return notification.KindTelegram
}

// Send returns when the message is sent or ctx is done, whichever comes first.
// telebot has no context support, so a timed-out send finishes in the background.
func (t *Telegram) Send(ctx context.Context, ev attendance.Event) error {
	text := ev.Title() + "\n" + ev.Message
	done := make(chan error, 1)
	go func() {
		done <- t.client.SendMessage(t.chatID, text, &telebot.SendOptions{DisableWebPagePreview: true})
	}()
	select {
	case err := <-done:
		return errors.Wrap(err, "send telegram message")
	case <-ctx.Done():
		return ctx.Err()
	}
}

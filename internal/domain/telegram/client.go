package telegram

import "gopkg.in/telebot.v3"

// Client sends messages through a Telegram bot. The notifier depends on this
// instead of on telebot's transport so it can be tested without the API.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

package notifier

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/domain/notification"
	"attendance_bot/internal/infra/config"
	"attendance_bot/internal/infra/telegram"
)

// Build creates the enabled backends in dispatch order.
func Build(cfg *config.AppConfig, logger logrus.FieldLogger) ([]notification.Backend, error) {
	n := cfg.Notifications
	timeout := cfg.NotificationTimeout()

	var backends []notification.Backend
	for _, kind := range cfg.EnabledBackends() {
		switch kind {
		case notification.KindWebhook:
			backends = append(backends, NewWebhook(n.WebhookURL, timeout))
		case notification.KindNtfy:
			backends = append(backends, NewNtfy(n.NtfyURL, timeout))
		case notification.KindDesktop:
			backends = append(backends, NewDesktop(n.DesktopTitle, logger.WithField("backend", kind)))
		case notification.KindTelegram:
			bot, err := telegram.NewBot(n.TelegramToken, timeout)
			if err != nil {
				return nil, errors.Wrap(err, "create telegram bot")
			}
			backends = append(backends, NewTelegram(telegram.NewTelebotAdapter(bot), n.TelegramChatID))
		}
	}
	return backends, nil
}

package main

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"attendance_bot/internal/infra/config"
	"attendance_bot/internal/infra/logger"
)

// cliFlags are the persistent flags shared by every command. Set flags win
// over the environment and the config file.
type cliFlags struct {
	configPath string
	logLevel   string
	timeout    int
	notify     string
	webhookURL string
	ntfyURL    string
	username   string
	password   string
}

type commandContext struct {
	flags cliFlags

	configOnce sync.Once
	config     *config.AppConfig
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		c.applyFlags(cfg)
		logger.Init(cfg)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyFlags(cfg *config.AppConfig) {
	f := c.flags
	if f.logLevel != "" {
		cfg.LogLevel = strings.ToLower(f.logLevel)
	}
	if f.timeout > 0 {
		cfg.RequestTimeoutSeconds = f.timeout
	}
	if f.notify != "" {
		var backends []string
		for _, name := range strings.Split(f.notify, ",") {
			if name = strings.TrimSpace(name); name != "" {
				backends = append(backends, name)
			}
		}
		cfg.Notifications.Backends = backends
	}
	if f.webhookURL != "" {
		cfg.Notifications.WebhookURL = f.webhookURL
	}
	if f.ntfyURL != "" {
		cfg.Notifications.NtfyURL = f.ntfyURL
	}
	if f.username != "" {
		cfg.Username = f.username
	}
	if f.password != "" {
		cfg.Password = f.password
	}
}

func (c *commandContext) log() *logrus.Logger {
	return logger.Get()
}

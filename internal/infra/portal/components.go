package portal

import (
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/infra/config"
)

// Components are the collaborators of one run. They share a single Client
// and therefore a single cookie jar.
type Components struct {
	Client    *Client
	Contract  *Contract
	Auth      *Authenticator
	Locator   *Locator
	Submitter *Submitter
}

// NewComponents builds a fresh client and everything that uses it.
func NewComponents(cfg *config.AppConfig, logger logrus.FieldLogger) (*Components, error) {
	contract, err := NewContract(cfg.Portal)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(cfg.Portal.BaseURL, cfg.RequestTimeout(), cfg.Portal.UserAgent, logger.WithField("component", "transport"))
	if err != nil {
		return nil, err
	}
	return &Components{
		Client:    client,
		Contract:  contract,
		Auth:      NewAuthenticator(client, contract, logger.WithField("component", "authenticator")),
		Locator:   NewLocator(client, contract, logger.WithField("component", "locator")),
		Submitter: NewSubmitter(client, contract, logger.WithField("component", "submitter")),
	}, nil
}

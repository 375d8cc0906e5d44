// Package relay delivers contact payloads: through the EmailJS REST API,
// over SMTP, or to the log during development.
package relay

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("relay: unknown provider")

// DefaultClientTimeout bounds one EmailJS request or SMTP operation when
// no relay timeout is configured.
const DefaultClientTimeout = 30 * time.Second

// MaxWait is the longest Send on the relay built from cfg can block.
// relay.timeout bounds every call; without it the client timeout does,
// and the EmailJS client never waits past DefaultClientTimeout.
func MaxWait(cfg config.Config) time.Duration {
	t := cfg.Relay.Timeout
	switch {
	case t <= 0:
		return DefaultClientTimeout
	case cfg.Relay.Provider == config.ProviderEmailJS && t > DefaultClientTimeout:
		return DefaultClientTimeout
	}
	return t
}

// New builds the relay selected by cfg.Relay.Provider.
func New(cfg config.Config, logger *zap.Logger) (contact.Relay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Relay.Provider {
	case config.ProviderEmailJS:
		return NewEmailJS(EmailJSOptions{
			Endpoint:    cfg.EmailJS.Endpoint,
			ServiceID:   cfg.EmailJS.ServiceID,
			TemplateID:  cfg.EmailJS.TemplateID,
			PublicKey:   cfg.EmailJS.PublicKey,
			AccessToken: cfg.EmailJS.AccessToken,
		}), nil
	case config.ProviderSMTP:
		return NewSMTP(SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
			To:       cfg.SMTP.To,
			UseSSL:   cfg.SMTP.UseSSL,
			Timeout:  cfg.Relay.Timeout,
		}), nil
	case config.ProviderLog:
		return NewLog(logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Relay.Provider)
}

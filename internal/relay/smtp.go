package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/Zachkp/portfolio/internal/contact"
)

// SMTPOptions configures direct delivery to the site owner's mailbox.
type SMTPOptions struct {
	Host     string
	Port     int // 587 STARTTLS by default, 465 implies SSL
	Username string
	Password string
	From     string
	FromName string
	To       string
	UseSSL   bool
	Timeout  time.Duration
}

// SMTP mails each payload to a fixed recipient with Reply-To set to the sender.
type SMTP struct {
	opts SMTPOptions
}

// NewSMTP returns an SMTP relay with port and timeout defaults applied.
func NewSMTP(opts SMTPOptions) *SMTP {
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Port == 465 {
		opts.UseSSL = true
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultClientTimeout
	}
	return &SMTP{opts: opts}
}

// Send delivers one payload.
func (s *SMTP) Send(ctx context.Context, p contact.Payload) error {
	m, err := s.message(p)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.opts.Port),
		mail.WithTimeout(s.opts.Timeout),
	}
	if s.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.opts.Username),
			mail.WithPassword(s.opts.Password),
		)
	}
	if s.opts.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	c, err := mail.NewClient(s.opts.Host, opts...)
	if err != nil {
		return fmt.Errorf("relay: smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("relay: smtp send: %w", err)
	}
	return nil
}

// message builds the mail for p without sending it.
func (s *SMTP) message(p contact.Payload) (*mail.Msg, error) {
	m := mail.NewMsg()

	if s.opts.FromName != "" {
		if err := m.FromFormat(s.opts.FromName, s.opts.From); err != nil {
			return nil, fmt.Errorf("relay: invalid from address: %w", err)
		}
	} else if err := m.From(s.opts.From); err != nil {
		return nil, fmt.Errorf("relay: invalid from address: %w", err)
	}
	if err := m.To(s.opts.To); err != nil {
		return nil, fmt.Errorf("relay: invalid to address: %w", err)
	}
	if err := m.ReplyTo(p.FromEmail); err != nil {
		return nil, fmt.Errorf("relay: invalid reply-to address: %w", err)
	}

	m.Subject("Portfolio Contact: " + p.Subject)
	m.SetBodyString(mail.TypeTextPlain, plainBody(p))
	return m, nil
}

func plainBody(p contact.Payload) string {
	return fmt.Sprintf(`Hi %s,

New contact form submission from your portfolio:

Name: %s
Email: %s
Subject: %s
Message:
%s

---
Sent from your portfolio contact form
`, p.ToName, p.FromName, p.FromEmail, p.Subject, p.Message)
}

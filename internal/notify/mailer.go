// Package notify delivers approval notifications: templated emails through
// SMTP and optional workflow events through NATS.
//
// All delivery is best-effort. Failures are logged and never propagated back
// into the approval decision that triggered them.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/ernit/be-reimbursements/internal/config"
)

// Email is one outbound message. Empty Cc omits the CC header entirely.
type Email struct {
	To      string
	Cc      []string
	Subject string
	HTML    string
}

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

// SMTPMailer sends email through an authenticated SMTP relay.
type SMTPMailer struct {
	client      *mail.Client
	fromName    string
	fromAddress string
}

// NewSMTPMailer builds a mailer from the SMTP configuration.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}

	return &SMTPMailer{
		client:      client,
		fromName:    cfg.FromName,
		fromAddress: cfg.FromAddress,
	}, nil
}

// Send delivers one message, honoring ctx for the delivery deadline.
func (m *SMTPMailer) Send(ctx context.Context, email *Email) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.fromAddress); err != nil {
		return fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("notify: to address: %w", err)
	}
	if len(email.Cc) > 0 {
		if err := msg.Cc(email.Cc...); err != nil {
			return fmt.Errorf("notify: cc addresses: %w", err)
		}
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}

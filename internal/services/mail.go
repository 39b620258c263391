package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// Email is an outgoing plain-text message.
type Email struct {
	Subject string
	Body    string
	To      []string
}

// Mailer delivers email.
type Mailer interface {
	SendMail(ctx context.Context, e *Email) error
}

// Mailgun sends mail through the Mailgun HTTP API.
type Mailgun struct {
	mg   *mailgun.MailgunImpl
	from string
}

// NewMailgun builds a Mailgun mailer.
func NewMailgun(domain, apiKey, apiBase, from string) *Mailgun {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &Mailgun{mg: mg, from: from}
}

func (m *Mailgun) SendMail(ctx context.Context, e *Email) error {
	message := m.mg.NewMessage(m.from, e.Subject, e.Body, e.To...)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, _, err := m.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun: send: %w", err)
	}
	return nil
}

// NoopMailer logs instead of sending; used when Mailgun is not configured.
type NoopMailer struct {
	Log *slog.Logger
}

func (n NoopMailer) SendMail(_ context.Context, e *Email) error {
	if n.Log != nil {
		n.Log.Debug("mail not configured, dropping message", slog.String("subject", e.Subject), slog.Any("to", e.To))
	}
	return nil
}

// WelcomeEmail is sent after a successful registration.
func WelcomeEmail(name, email string, admin bool) *Email {
	body := fmt.Sprintf("Hi %s,\n\nWelcome to the store! Your account %s is ready.\n", name, email)
	if admin {
		body += "\nYou are the first account on this store and have been granted administrator access.\n"
	}
	return &Email{
		Subject: "Welcome to the store",
		Body:    body,
		To:      []string{email},
	}
}

package publisher

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// EmailConfig holds the SMTP settings for the email collaborator.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	To       string
}

// Email delivers change alerts to a mailbox over SMTP. Useful for
// deployments without social credentials, and as a personal audit channel.
type Email struct {
	cfg  EmailConfig
	addr string
	// send is swapped in tests; defaults to email.Email.Send over SMTP.
	send func(e *email.Email) error
}

// NewEmail builds the collaborator.
func NewEmail(cfg EmailConfig) *Email {
	m := &Email{cfg: cfg, addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	m.send = func(e *email.Email) error {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
		return e.Send(m.addr, auth)
	}
	return m
}

// Name implements Publisher.
func (m *Email) Name() string { return "email" }

// Publish implements Publisher. The returned ID is a locally generated
// message reference since SMTP reports no server-side ID.
func (m *Email) Publish(ctx context.Context, rec model.ChangeRecord) (string, error) {
	if m.cfg.Host == "" || m.cfg.To == "" {
		return "", apperr.Newf(apperr.Validation, "publisher.Email", "smtp settings are not configured")
	}
	select {
	case <-ctx.Done():
		return "", apperr.New(apperr.Transient, "publisher.Email", ctx.Err())
	default:
	}

	e := email.NewEmail()
	e.From = m.cfg.User
	e.To = []string{m.cfg.To}
	e.Subject = fmt.Sprintf("【価格変動】%s", truncate(rec.Name, 60))
	e.Text = []byte(FormatMessage(rec, false))

	if err := m.send(e); err != nil {
		return "", apperr.New(apperr.Transient, "publisher.Email", err)
	}
	return uuid.NewString(), nil
}

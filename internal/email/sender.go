package email

import (
	"context"
	"time"

	"orengen_backend/platform/config"
)

// LeadNotification is everything a speed-to-lead email can show.
type LeadNotification struct {
	Type             string
	LeadID           string
	Domain           string
	Score            *int
	RecipientName    string
	AssigneeName     string
	Reason           string
	Deadline         *time.Time
	MinutesRemaining *int
	LeadURL          string
}

type Sender interface {
	SendLeadNotification(ctx context.Context, toEmail string, n LeadNotification) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

type NoopSender struct{}

func (NoopSender) SendLeadNotification(ctx context.Context, toEmail string, n LeadNotification) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender returns an SMTP sender when email is configured and a no-op
// sender otherwise.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

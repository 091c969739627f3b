package channels

import (
	"context"
	"strings"

	"orengen_backend/internal/email"
	"orengen_backend/internal/speedtolead/settings"
)

// EmailSender delivers through the SMTP email sender.
type EmailSender struct {
	sender  email.Sender
	baseURL string
}

func NewEmailSender(sender email.Sender, appBaseURL string) *EmailSender {
	return &EmailSender{sender: sender, baseURL: strings.TrimRight(appBaseURL, "/")}
}

func (s *EmailSender) Channel() string { return string(settings.ChannelEmail) }

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.Recipient.Email)
	if to == "" {
		return ErrNoAddress
	}

	c := msg.Content
	leadURL := ""
	if s.baseURL != "" && c.LeadID != "" {
		leadURL = s.baseURL + "/leads/" + c.LeadID
	}

	return s.sender.SendLeadNotification(ctx, to, email.LeadNotification{
		Type:             c.Type,
		LeadID:           c.LeadID,
		Domain:           c.Domain,
		Score:            c.Score,
		RecipientName:    msg.Recipient.Name,
		AssigneeName:     c.AssigneeName,
		Reason:           c.Reason,
		Deadline:         c.SLADeadline,
		MinutesRemaining: c.MinutesRemaining,
		LeadURL:          leadURL,
	})
}

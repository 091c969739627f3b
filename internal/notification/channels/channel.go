// Package channels delivers a stored notification to one recipient over one
// medium.
package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orengen_backend/internal/notification/recipients"
	"orengen_backend/internal/speedtolead/domain"
)

// ErrNoAddress means the recipient has nothing to deliver to on this channel.
// Retrying will not help.
var ErrNoAddress = errors.New("recipient has no address for channel")

// PermanentError marks a delivery failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so IsPermanent reports true.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	if errors.Is(err, ErrNoAddress) {
		return true
	}
	var p *PermanentError
	return errors.As(err, &p)
}

// Message is a notification together with its resolved recipient.
type Message struct {
	Notification domain.Notification
	Recipient    recipients.Contact
	Content      Content
}

// Content is the decoded notification payload.
type Content struct {
	LeadID           string     `json:"leadId"`
	Type             string     `json:"type"`
	Domain           string     `json:"domain,omitempty"`
	Score            *int       `json:"score,omitempty"`
	AssignedTo       string     `json:"assignedTo,omitempty"`
	AssigneeName     string     `json:"assigneeName,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	SLADeadline      *time.Time `json:"slaDeadline,omitempty"`
	MinutesRemaining *int       `json:"minutesRemaining,omitempty"`
}

// Sender delivers messages over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, msg Message) error
}

// Registry routes a message to the sender for its channel.
type Registry struct {
	senders map[string]Sender
}

func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[string]Sender, len(senders))}
	for _, s := range senders {
		if s != nil {
			r.senders[s.Channel()] = s
		}
	}
	return r
}

func (r *Registry) Send(ctx context.Context, msg Message) error {
	sender, ok := r.senders[msg.Notification.Channel]
	if !ok {
		return Permanent(fmt.Errorf("no sender for channel %q", msg.Notification.Channel))
	}
	return sender.Send(ctx, msg)
}

// Summary is the one-line text used by the plain-text channels.
func (c Content) Summary() string {
	name := c.Domain
	if name == "" {
		name = "lead " + c.LeadID
	}
	switch domain.NotificationType(c.Type) {
	case domain.NotificationNewLead:
		return fmt.Sprintf("New lead assigned: %s%s", name, scoreSuffix(c.Score))
	case domain.NotificationHighScore:
		return fmt.Sprintf("Hot lead: %s%s", name, scoreSuffix(c.Score))
	case domain.NotificationSLAWarning:
		if c.MinutesRemaining != nil {
			return fmt.Sprintf("Respond to %s within %d min", name, *c.MinutesRemaining)
		}
		return fmt.Sprintf("Respond to %s soon", name)
	case domain.NotificationSLABreach:
		return fmt.Sprintf("Response window missed for %s", name)
	case domain.NotificationEscalation:
		if c.Reason != "" {
			return fmt.Sprintf("Lead escalated: %s (%s)", name, c.Reason)
		}
		return fmt.Sprintf("Lead escalated: %s", name)
	default:
		return fmt.Sprintf("Lead update: %s", name)
	}
}

func scoreSuffix(score *int) string {
	if score == nil {
		return ""
	}
	return fmt.Sprintf(" (score %d)", *score)
}

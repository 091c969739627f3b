// Package settings holds the per-tenant speed-to-lead configuration: the
// typed model, its validation, the YAML defaults and a cached store.
package settings

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Strategy names an assignment algorithm.
type Strategy string

const (
	StrategyRoundRobin  Strategy = "round_robin"
	StrategyLeastLoaded Strategy = "least_loaded"
	StrategyByScore     Strategy = "by_score"
	StrategyByTerritory Strategy = "by_territory"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyRoundRobin, StrategyLeastLoaded, StrategyByScore, StrategyByTerritory}

// IsKnown reports whether s is one of the supported strategies.
func (s Strategy) IsKnown() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// Channel names a notification delivery channel.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelWebhook, ChannelSlack}

func (c Channel) IsKnown() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Config is the per-tenant speed-to-lead configuration.
//
// FirstResponseMinutes of 0 selects tier mode: the SLA follows the lead's score
// tier (hot 5, warm 30, cold 120 minutes).
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	AutoAssignEnabled  bool        `json:"autoAssignEnabled" yaml:"auto_assign_enabled"`
	AssignmentStrategy Strategy    `json:"assignmentStrategy" yaml:"assignment_strategy"`
	EligibleUsers      []uuid.UUID `json:"eligibleUsers" yaml:"eligible_users"`

	SLAEnabled           bool `json:"slaEnabled" yaml:"sla_enabled"`
	FirstResponseMinutes int  `json:"firstResponseMinutes" yaml:"first_response_minutes"`
	FollowUpMinutes      int  `json:"followUpMinutes" yaml:"follow_up_minutes"`

	NotifyOnNewLead      bool      `json:"notifyOnNewLead" yaml:"notify_on_new_lead"`
	NotifyOnHighScore    bool      `json:"notifyOnHighScore" yaml:"notify_on_high_score"`
	HighScoreThreshold   int       `json:"highScoreThreshold" yaml:"high_score_threshold"`
	NotificationChannels []Channel `json:"notificationChannels" yaml:"notification_channels"`

	EscalationEnabled      bool        `json:"escalationEnabled" yaml:"escalation_enabled"`
	EscalationDelayMinutes int         `json:"escalationDelayMinutes" yaml:"escalation_delay_minutes"`
	EscalationRecipients   []uuid.UUID `json:"escalationRecipients" yaml:"escalation_recipients"`

	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Validate checks field ranges and enum values.
func (c Config) Validate() error {
	if c.AssignmentStrategy != "" && !c.AssignmentStrategy.IsKnown() {
		return fmt.Errorf("unsupported strategy: %s", c.AssignmentStrategy)
	}
	for _, ch := range c.NotificationChannels {
		if !ch.IsKnown() {
			return fmt.Errorf("unsupported channel: %s", ch)
		}
	}
	if c.FirstResponseMinutes < 0 || c.FollowUpMinutes < 0 || c.EscalationDelayMinutes < 0 {
		return fmt.Errorf("minute settings must not be negative")
	}
	if c.HighScoreThreshold < 0 || c.HighScoreThreshold > 100 {
		return fmt.Errorf("highScoreThreshold must be between 0 and 100")
	}
	for _, id := range c.EligibleUsers {
		if id == uuid.Nil {
			return fmt.Errorf("eligibleUsers contains an empty id")
		}
	}
	for _, id := range c.EscalationRecipients {
		if id == uuid.Nil {
			return fmt.Errorf("escalationRecipients contains an empty id")
		}
	}
	return nil
}

// Normalize removes duplicate users and channels while keeping their order.
// Order matters: by_score treats the first eligible user as the senior slot.
func (c Config) Normalize() Config {
	c.EligibleUsers = dedupeIDs(c.EligibleUsers)
	c.EscalationRecipients = dedupeIDs(c.EscalationRecipients)

	seen := make(map[Channel]struct{}, len(c.NotificationChannels))
	channels := make([]Channel, 0, len(c.NotificationChannels))
	for _, ch := range c.NotificationChannels {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		channels = append(channels, ch)
	}
	c.NotificationChannels = channels
	return c
}

// UsesTierSLA reports whether SLA minutes come from the score tier.
func (c Config) UsesTierSLA() bool {
	return c.FirstResponseMinutes == 0
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package transport

import (
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/settings"

	"github.com/google/uuid"
)

type UpdateConfigRequest struct {
	Enabled bool `json:"enabled"`

	AutoAssignEnabled  bool        `json:"autoAssignEnabled"`
	AssignmentStrategy string      `json:"assignmentStrategy" validate:"omitempty,max=32"`
	EligibleUsers      []uuid.UUID `json:"eligibleUsers" validate:"max=200"`

	SLAEnabled           bool `json:"slaEnabled"`
	FirstResponseMinutes int  `json:"firstResponseMinutes" validate:"min=0,max=10080"`
	FollowUpMinutes      int  `json:"followUpMinutes" validate:"min=0,max=43200"`

	NotifyOnNewLead      bool     `json:"notifyOnNewLead"`
	NotifyOnHighScore    bool     `json:"notifyOnHighScore"`
	HighScoreThreshold   int      `json:"highScoreThreshold" validate:"min=0,max=100"`
	NotificationChannels []string `json:"notificationChannels" validate:"max=4,dive,oneof=email sms webhook slack"`

	EscalationEnabled      bool        `json:"escalationEnabled"`
	EscalationDelayMinutes int         `json:"escalationDelayMinutes" validate:"min=0,max=10080"`
	EscalationRecipients   []uuid.UUID `json:"escalationRecipients" validate:"max=50"`
}

// ToConfig maps the request onto the typed configuration. Strategy names are
// checked by the settings store so an unknown one surfaces as unsupported.
func (r UpdateConfigRequest) ToConfig() settings.Config {
	channels := make([]settings.Channel, 0, len(r.NotificationChannels))
	for _, ch := range r.NotificationChannels {
		channels = append(channels, settings.Channel(ch))
	}
	return settings.Config{
		Enabled:                r.Enabled,
		AutoAssignEnabled:      r.AutoAssignEnabled,
		AssignmentStrategy:     settings.Strategy(r.AssignmentStrategy),
		EligibleUsers:          r.EligibleUsers,
		SLAEnabled:             r.SLAEnabled,
		FirstResponseMinutes:   r.FirstResponseMinutes,
		FollowUpMinutes:        r.FollowUpMinutes,
		NotifyOnNewLead:        r.NotifyOnNewLead,
		NotifyOnHighScore:      r.NotifyOnHighScore,
		HighScoreThreshold:     r.HighScoreThreshold,
		NotificationChannels:   channels,
		EscalationEnabled:      r.EscalationEnabled,
		EscalationDelayMinutes: r.EscalationDelayMinutes,
		EscalationRecipients:   r.EscalationRecipients,
	}
}

type ConfigResponse struct {
	settings.Config
	// Stored is false while the tenant runs on the defaults.
	Stored bool `json:"stored"`
}

type FirstResponseRequest struct {
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

type FirstResponseResponse struct {
	SLAMet bool `json:"slaMet"`
}

type EscalateRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type AssignRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type AuditListResponse struct {
	Items []domain.AuditEntry `json:"items"`
}

// Package sla computes first-response deadlines, classifies assignments
// against them and aggregates compliance metrics.
package sla

import (
	"math"
	"time"

	"orengen_backend/internal/speedtolead/domain"
)

// Status is the SLA state of an assignment.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusBreached Status = "breached"
)

// WarningWindow is how close to the deadline an unanswered lead turns "warning".
const WarningWindow = 5 * time.Minute

// StatusReport is the result of CheckStatus.
type StatusReport struct {
	Status           Status     `json:"status"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	MinutesRemaining *int       `json:"minutesRemaining"`
}

// ComputeDeadline returns assignedAt plus the given number of minutes.
func ComputeDeadline(assignedAt time.Time, minutes int) time.Time {
	return assignedAt.Add(time.Duration(minutes) * time.Minute)
}

// CheckStatus classifies a at time now.
//
// Minutes remaining are rounded up and never negative. Once a response is
// recorded the report is frozen at response time: an on-time response stays
// "ok" and a late one stays "breached".
func CheckStatus(a domain.Assignment, now time.Time) StatusReport {
	if a.SLADeadline == nil {
		return StatusReport{Status: StatusOK}
	}

	deadline := *a.SLADeadline
	report := StatusReport{Deadline: &deadline}

	if a.FirstResponseAt != nil {
		remaining := minutesUntil(deadline, *a.FirstResponseAt)
		report.MinutesRemaining = &remaining
		report.Status = StatusOK
		if a.SLAMet != nil && !*a.SLAMet {
			report.Status = StatusBreached
		}
		return report
	}

	remaining := minutesUntil(deadline, now)
	report.MinutesRemaining = &remaining

	switch {
	case now.After(deadline):
		report.Status = StatusBreached
	case remaining > 0 && time.Duration(remaining)*time.Minute <= WarningWindow:
		report.Status = StatusWarning
	default:
		report.Status = StatusOK
	}
	return report
}

// RecordFirstResponse sets the first response on a. It is a one-way
// transition: when a response is already present a is returned unchanged
// with recorded=false and the stored outcome.
func RecordFirstResponse(a domain.Assignment, respondedAt time.Time) (updated domain.Assignment, slaMet bool, recorded bool) {
	if a.FirstResponseAt != nil {
		met := a.SLAMet == nil || *a.SLAMet
		return a, met, false
	}

	met := IsMet(a.SLADeadline, respondedAt)
	if a.SLAMet != nil && !*a.SLAMet {
		// A breach already stored by the SLA check stays a breach.
		met = false
	}
	responded := respondedAt
	a.FirstResponseAt = &responded
	a.SLAMet = &met
	return a, met, true
}

// IsMet reports whether a response at respondedAt satisfies deadline.
// No deadline always counts as met.
func IsMet(deadline *time.Time, respondedAt time.Time) bool {
	return deadline == nil || !respondedAt.After(*deadline)
}

// IsOverdue reports whether a is past its deadline with no response.
func IsOverdue(a domain.Assignment, now time.Time) bool {
	return a.SLADeadline != nil && a.FirstResponseAt == nil && now.After(*a.SLADeadline)
}

func minutesUntil(deadline, at time.Time) int {
	remaining := deadline.Sub(at)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

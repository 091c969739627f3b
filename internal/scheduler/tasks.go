package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskSLACheck = "speedtolead.sla_check"

const TaskNotificationOutboxDue = "notification.outbox.due"

// SLA check phases.
const (
	SLAPhaseWarning    = "warning"
	SLAPhaseDeadline   = "deadline"
	SLAPhaseEscalation = "escalation"
)

// SLAPhases lists every phase a check can be scheduled for.
var SLAPhases = []string{SLAPhaseWarning, SLAPhaseDeadline, SLAPhaseEscalation}

type SLACheckPayload struct {
	TenantID     string `json:"tenantId"`
	LeadID       string `json:"leadId"`
	AssignmentID string `json:"assignmentId"`
	Phase        string `json:"phase"`
}

type NotificationOutboxDuePayload struct {
	NotificationID string `json:"notificationId"`
	TenantID       string `json:"tenantId"`
}

// SLACheckTaskID is deterministic so rescheduling the same phase is a no-op
// and pending checks can be deleted when an assignment is superseded.
func SLACheckTaskID(assignmentID, phase string) string {
	return fmt.Sprintf("sla:%s:%s", assignmentID, phase)
}

func NewSLACheckTask(payload SLACheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSLACheck, data), nil
}

func ParseSLACheckPayload(task *asynq.Task) (SLACheckPayload, error) {
	var payload SLACheckPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SLACheckPayload{}, err
	}
	return payload, nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}

package escalation

import (
	"time"

	"github.com/lumenhr/be-hr-workflows/internal/repository"
)

// Escalation-progress thresholds for steps without a hard deadline:
// fraction of the escalation window consumed before the status degrades.
const (
	progressCritical = 0.9
	progressWarning  = 0.75
)

// ComputeSLAStatus derives a step's SLA health from the clock alone. It is
// a pure function of (now, started, deadline, step thresholds); the value
// cached on the instance is never an input.
//
// When a hard deadline exists, status follows hours-until-deadline against
// the step's warning/critical thresholds (unset thresholds never trip).
// Otherwise, when the step has an escalation window, status follows the
// fraction of that window already consumed.
func ComputeSLAStatus(now time.Time, startedAt, deadline *time.Time, step *repository.WorkflowStep) string {
	if deadline != nil {
		hoursUntil := deadline.Sub(now).Hours()
		switch {
		case hoursUntil <= 0:
			return repository.SLAOverdue
		case step.SLACriticalHours != nil && hoursUntil <= float64(*step.SLACriticalHours):
			return repository.SLACritical
		case step.SLAWarningHours != nil && hoursUntil <= float64(*step.SLAWarningHours):
			return repository.SLAWarning
		}
		return repository.SLAOnTrack
	}

	if step.EscalationHours != nil && *step.EscalationHours > 0 && startedAt != nil {
		progress := now.Sub(*startedAt).Hours() / float64(*step.EscalationHours)
		switch {
		case progress >= 1.0:
			return repository.SLAOverdue
		case progress >= progressCritical:
			return repository.SLACritical
		case progress >= progressWarning:
			return repository.SLAWarning
		}
	}

	return repository.SLAOnTrack
}

package escalation

// Action is an escalation action configured on a workflow step.
type Action string

// Escalation actions.
const (
	ActionNotify      Action = "notify"
	ActionAutoApprove Action = "auto_approve"
	ActionAutoReject  Action = "auto_reject"
	ActionDelegate    Action = "delegate"
)

// ParseAction maps a configured action string onto the closed action set.
// Empty and unrecognized values fall back to notify; ok is false for
// unrecognized values so the caller can log the configuration problem.
func ParseAction(s string) (action Action, ok bool) {
	switch Action(s) {
	case ActionNotify, ActionAutoApprove, ActionAutoReject, ActionDelegate:
		return Action(s), true
	case "":
		return ActionNotify, true
	}
	return ActionNotify, false
}

package domain

import "strings"

type Action string

const (
	ActionSubmit      Action = "SUBMIT"
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
	ActionTakeOffline Action = "OFFLINE"
	ActionBringOnline Action = "ONLINE"
	ActionDelete      Action = "DELETE"
)

// Transition is one row of the lifecycle table. To is empty for Delete.
type Transition struct {
	From []Status
	To   Status
}

var transitions = map[Action]Transition{
	ActionSubmit:      {From: []Status{StatusDraft, StatusRejected}, To: StatusPending},
	ActionApprove:     {From: []Status{StatusPending}, To: StatusApproved},
	ActionReject:      {From: []Status{StatusPending}, To: StatusRejected},
	ActionTakeOffline: {From: []Status{StatusApproved}, To: StatusOffline},
	ActionBringOnline: {From: []Status{StatusOffline}, To: StatusApproved},
	ActionDelete:      {From: []Status{StatusDraft}},
}

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := transitions[a]
	return a, ok
}

// TransitionFor looks up the table row for a.
func TransitionFor(a Action) (Transition, bool) {
	t, ok := transitions[a]
	return t, ok
}

func (t Transition) Allows(s Status) bool {
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}

// ByReviewer reports whether the action is performed by an admin rather than the owner.
func (a Action) ByReviewer() bool {
	switch a {
	case ActionApprove, ActionReject, ActionTakeOffline, ActionBringOnline:
		return true
	}
	return false
}

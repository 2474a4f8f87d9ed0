package tracker

// Status is the lifecycle state of a recommendation.
type Status string

// String implements the Stringer interface for Status
func (s Status) String() string {
	return string(s)
}

const (
	// StatusProposed is the initial state of every recommendation.
	StatusProposed Status = "proposed"
	// StatusDismissed means an operator rejected the recommendation.
	StatusDismissed Status = "dismissed"
	// StatusSnoozed parks the recommendation until it is woken again.
	StatusSnoozed Status = "snoozed"
	// StatusApplied means the fix was applied after a successful benchmark.
	StatusApplied Status = "applied"
	// StatusRolledBack means an applied fix was reverted.
	StatusRolledBack Status = "rolled_back"
)

// transitions is the full legality matrix. Dismissed and rolled_back are
// terminal; snoozed wakes back to proposed.
var transitions = map[Status][]Status{
	StatusProposed: {StatusDismissed, StatusSnoozed, StatusApplied},
	StatusSnoozed:  {StatusProposed},
	StatusApplied:  {StatusRolledBack},
}

/*
CanTransitionTo reports whether moving from s to the target status is legal.
*/
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

/*
Terminal reports whether no further transition is possible from s.
*/
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

/*
ValidStatus reports whether s is a known lifecycle state.
*/
func ValidStatus(s Status) bool {
	switch s {
	case StatusProposed, StatusDismissed, StatusSnoozed, StatusApplied, StatusRolledBack:
		return true
	}
	return false
}

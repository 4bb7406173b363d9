// Package domain provides core business rules for the lead assignment
// bounded context: assignment states, acceptance outcomes and the
// escalation stage model used by the acceptance monitor.
package domain

// AssignmentStatus tracks where a lead sits in the assignment lifecycle.
// It is orthogonal to the lead's business status (new, contacted, won, lost).
type AssignmentStatus string

const (
	// AssignmentUnassigned means the lead is in the unassigned pool.
	AssignmentUnassigned AssignmentStatus = "unassigned"
	// AssignmentPendingAcceptance means the lead is waiting for the
	// current assignee to accept or decline it.
	AssignmentPendingAcceptance AssignmentStatus = "pending_acceptance"
	// AssignmentAccepted means the assignee confirmed the lead and is
	// working it.
	AssignmentAccepted AssignmentStatus = "accepted"
)

// AcceptanceOutcome is the assignee's response within one acceptance cycle.
// It is meaningful only while the lead is pending acceptance.
type AcceptanceOutcome string

const (
	OutcomePending  AcceptanceOutcome = "pending"
	OutcomeAccepted AcceptanceOutcome = "accepted"
	OutcomeDeclined AcceptanceOutcome = "declined"
)

// Business statuses for a lead. Only StatusNew matters to assignment: a
// released lead returns to the pool as StatusNew. Accepting leaves the
// business status untouched so a reassigned lead keeps its working state.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusWon       = "won"
	StatusLost      = "lost"
)

// Counter names on the seller record. Monotonically incremented, used for
// reporting, never decremented.
const (
	CounterAccepted   = "accepted"
	CounterDeclined   = "declined"
	CounterReassigned = "reassigned"
	CounterTimedOut   = "timed_out"
)

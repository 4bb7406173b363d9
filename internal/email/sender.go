// Package email renders and delivers outbound mail for the assignment
// lifecycle: assignment notices, acceptance reminders and manager timeout
// notices.
package email

import "context"

// Sender delivers the assignment lifecycle emails. All sends are
// fire-and-forget from the caller's perspective: failures are logged by the
// caller and never roll back a state transition.
type Sender interface {
	// SendAssignmentNotice tells a seller a lead is waiting for their response.
	SendAssignmentNotice(ctx context.Context, toEmail, sellerName, consumerName string, leadURL string) error
	// SendAcceptanceReminder nudges the assignee. final marks the last-call
	// reminder before timeout.
	SendAcceptanceReminder(ctx context.Context, toEmail, sellerName, consumerName string, hoursRemaining int, final bool, leadURL string) error
	// SendManagerTimeoutNotice informs the facility manager that a seller
	// let a lead's acceptance window elapse.
	SendManagerTimeoutNotice(ctx context.Context, toEmail, managerName, sellerName, consumerName string, leadURL string) error
}

// NopSender discards all mail. Used when email delivery is disabled.
type NopSender struct{}

func (NopSender) SendAssignmentNotice(context.Context, string, string, string, string) error {
	return nil
}

func (NopSender) SendAcceptanceReminder(context.Context, string, string, string, int, bool, string) error {
	return nil
}

func (NopSender) SendManagerTimeoutNotice(context.Context, string, string, string, string, string) error {
	return nil
}

var _ Sender = NopSender{}

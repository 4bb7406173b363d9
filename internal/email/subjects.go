package email

const (
	subjectAssignmentNotice  = "New lead waiting for your response"
	subjectFirstReminderFmt  = "Reminder: lead from %s still awaits your response"
	subjectFinalReminderFmt  = "Last call: lead from %s reassigns in %d hour(s)"
	subjectManagerTimeoutFmt = "Lead timeout: %s did not respond in time"
)

package domain

import (
	"math"
	"time"
)

// EscalationStage is how far the monitor has escalated the current
// acceptance cycle. Stages only move forward within one cycle; a
// reassignment starts a fresh cycle at StageNone.
type EscalationStage string

const (
	StageNone          EscalationStage = "none"
	StageFirstReminder EscalationStage = "first_reminder"
	StageFinalReminder EscalationStage = "final_reminder"
	StageTimedOut      EscalationStage = "timed_out"
)

// Markers holds the one-shot escalation timestamps for a lead's current
// acceptance cycle. Each is set at most once per cycle and all are cleared
// when a new cycle starts.
type Markers struct {
	FirstReminderAt   *time.Time
	FinalReminderAt   *time.Time
	TimeoutNotifiedAt *time.Time
}

// Stage derives the escalation stage from the markers. The timestamps are
// retained individually for audit, but their effect is a single forward-only
// stage.
func (m Markers) Stage() EscalationStage {
	switch {
	case m.TimeoutNotifiedAt != nil:
		return StageTimedOut
	case m.FinalReminderAt != nil:
		return StageFinalReminder
	case m.FirstReminderAt != nil:
		return StageFirstReminder
	default:
		return StageNone
	}
}

// Thresholds are the elapsed-time boundaries that drive escalation.
type Thresholds struct {
	FirstReminder time.Duration
	FinalReminder time.Duration
	Timeout       time.Duration
}

// DefaultThresholds returns the standard 6h / 11h / 12h escalation ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FirstReminder: 6 * time.Hour,
		FinalReminder: 11 * time.Hour,
		Timeout:       12 * time.Hour,
	}
}

// StepAction is what the monitor should do for a lead on this tick.
type StepAction int

const (
	ActionNone StepAction = iota
	ActionFirstReminder
	ActionFinalReminder
	ActionTimeout
)

// NextStep applies the first matching escalation rule, checked in strict
// priority order: timeout, then final reminder, then first reminder. Later
// thresholds win when a lead crossed several of them between ticks (e.g.
// a lead first observed at 13h elapsed goes straight to timeout and the
// stale reminders are skipped).
//
// A cycle whose timeout marker is set yields no further step here: the
// timeout transition either reassigned the lead (new cycle, fresh markers)
// or released it to the pool. The monitor separately re-runs the timeout
// resolution for a lead still pending with the marker set, which means an
// earlier escalation was cut short.
func NextStep(elapsed time.Duration, m Markers, t Thresholds) StepAction {
	if m.TimeoutNotifiedAt != nil {
		return ActionNone
	}

	switch {
	case elapsed >= t.Timeout:
		return ActionTimeout
	case elapsed >= t.FinalReminder && m.FinalReminderAt == nil:
		return ActionFinalReminder
	case elapsed >= t.FirstReminder && m.FirstReminderAt == nil && m.FinalReminderAt == nil:
		return ActionFirstReminder
	default:
		return ActionNone
	}
}

// HoursRemaining reports the whole hours left until timeout, rounded up,
// never negative. Used to phrase reminder notifications.
func HoursRemaining(elapsed time.Duration, t Thresholds) int {
	remaining := t.Timeout - elapsed
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours()))
}

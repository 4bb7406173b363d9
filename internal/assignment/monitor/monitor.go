// Package monitor runs the background acceptance sweep: it periodically
// scans leads awaiting acceptance and applies the staged escalation —
// first reminder, final reminder, then timeout.
package monitor

import (
	"context"
	"sync"
	"time"

	"leadflow_backend/internal/assignment/domain"
	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the storage subset the monitor needs.
type Store interface {
	ListPendingAcceptance(ctx context.Context, assigneeID *uuid.UUID) ([]repository.Lead, error)
	MarkFirstReminderSent(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error)
	MarkFinalReminderSent(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (repository.User, error)
}

// Escalator performs the timeout transition. Implemented by the assignment
// service, which owns the claim/reassign/notify sequence.
type Escalator interface {
	EscalateTimeout(ctx context.Context, leadID uuid.UUID) (repository.Lead, error)
}

// Monitor owns the sweep loop. A single goroutine runs ticks sequentially,
// so a slow tick delays the next one instead of overlapping it.
type Monitor struct {
	store      Store
	escalator  Escalator
	notifier   service.Notifier
	thresholds domain.Thresholds
	interval   time.Duration
	log        *logger.Logger
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Config carries the sweep cadence and escalation thresholds.
type Config interface {
	GetMonitorInterval() time.Duration
	GetFirstReminderAfter() time.Duration
	GetFinalReminderAfter() time.Duration
	GetAcceptanceTimeout() time.Duration
}

func New(store Store, escalator Escalator, notifier service.Notifier, cfg Config, log *logger.Logger) *Monitor {
	return &Monitor{
		store:     store,
		escalator: escalator,
		notifier:  notifier,
		thresholds: domain.Thresholds{
			FirstReminder: cfg.GetFirstReminderAfter(),
			FinalReminder: cfg.GetFinalReminderAfter(),
			Timeout:       cfg.GetAcceptanceTimeout(),
		},
		interval: cfg.GetMonitorInterval(),
		log:      log,
		now:      time.Now,
	}
}

// Start launches the sweep loop. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(runCtx, m.done)

	if m.log != nil {
		m.log.Info("acceptance monitor started",
			"interval", m.interval,
			"first_reminder_after", m.thresholds.FirstReminder,
			"final_reminder_after", m.thresholds.FinalReminder,
			"acceptance_timeout", m.thresholds.Timeout)
	}
}

// Stop cancels the loop and waits for the in-flight tick to finish.
// Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if m.log != nil {
		m.log.Info("acceptance monitor stopped")
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Sweep immediately so leads that escalated during downtime are
	// handled without waiting a full interval.
	m.sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	if err := m.RunTick(ctx); err != nil && m.log != nil {
		m.log.Error("acceptance sweep failed", "error", err)
	}
}

// RunTick performs one sweep over all pending leads. Errors on individual
// leads are logged and do not abort the tick; only a failure to list the
// pending set is returned.
func (m *Monitor) RunTick(ctx context.Context) error {
	leads, err := m.store.ListPendingAcceptance(ctx, nil)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.processLead(ctx, lead); err != nil && m.log != nil {
			m.log.Error("escalation step failed", "lead_id", lead.ID, "error", err)
		}
	}
	return nil
}

// processLead applies at most one escalation step to the lead. The step is
// derived from elapsed time and the one-shot markers, so a monitor that was
// down past several thresholds jumps straight to the most severe step
// instead of replaying stale reminders.
func (m *Monitor) processLead(ctx context.Context, lead repository.Lead) error {
	if lead.AssignedAt == nil || lead.AssignedTo == nil {
		return nil
	}

	// A lead still awaiting acceptance with the timeout marker set means an
	// earlier escalation claimed the timeout but failed before reassigning
	// or releasing. Re-run the escalation to finish the resolution.
	if lead.TimeoutNotifiedAt != nil {
		_, err := m.escalator.EscalateTimeout(ctx, lead.ID)
		return err
	}

	elapsed := m.now().Sub(*lead.AssignedAt)

	switch domain.NextStep(elapsed, lead.Markers(), m.thresholds) {
	case domain.ActionTimeout:
		_, err := m.escalator.EscalateTimeout(ctx, lead.ID)
		return err
	case domain.ActionFinalReminder:
		return m.sendReminder(ctx, lead, elapsed, true)
	case domain.ActionFirstReminder:
		return m.sendReminder(ctx, lead, elapsed, false)
	default:
		return nil
	}
}

// sendReminder claims the reminder marker, then sends. Claiming first keeps
// the reminder single-shot even when two monitor instances race; a send
// failure after a successful claim is logged, not retried.
func (m *Monitor) sendReminder(ctx context.Context, lead repository.Lead, elapsed time.Duration, final bool) error {
	var (
		ok  bool
		err error
	)
	if final {
		ok, err = m.store.MarkFinalReminderSent(ctx, lead.ID, m.now())
	} else {
		ok, err = m.store.MarkFirstReminderSent(ctx, lead.ID, m.now())
	}
	if err != nil {
		return err
	}
	if !ok {
		// Lost the claim: the lead resolved or another sweep got here first.
		return nil
	}

	if m.notifier == nil {
		return nil
	}
	seller, err := m.store.GetUser(ctx, *lead.AssignedTo)
	if err != nil {
		return err
	}
	hours := domain.HoursRemaining(elapsed, m.thresholds)
	if err := m.notifier.SendAcceptanceReminder(ctx, seller, lead, hours, final); err != nil && m.log != nil {
		m.log.NotificationError("acceptance reminder failed", lead.ID.String(), err)
	}
	return nil
}

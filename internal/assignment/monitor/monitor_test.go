package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadflow_backend/internal/assignment/domain"
	"leadflow_backend/internal/assignment/repository"

	"github.com/google/uuid"
)

type stubConfig struct {
	interval time.Duration
}

func (c stubConfig) GetMonitorInterval() time.Duration    { return c.interval }
func (c stubConfig) GetFirstReminderAfter() time.Duration { return 6 * time.Hour }
func (c stubConfig) GetFinalReminderAfter() time.Duration { return 11 * time.Hour }
func (c stubConfig) GetAcceptanceTimeout() time.Duration  { return 12 * time.Hour }

type stubStore struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]*repository.Lead
	listErr error
	ticks   int
}

func newStubStore() *stubStore {
	return &stubStore{leads: make(map[uuid.UUID]*repository.Lead)}
}

func (s *stubStore) addPending(assignedAgo time.Duration, now time.Time) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	seller := uuid.New()
	at := now.Add(-assignedAgo)
	s.leads[id] = &repository.Lead{
		ID:               id,
		AssignmentStatus: string(domain.AssignmentPendingAcceptance),
		AssignedTo:       &seller,
		AssignedAt:       &at,
	}
	return id
}

func (s *stubStore) ListPendingAcceptance(_ context.Context, _ *uuid.UUID) ([]repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]repository.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		out = append(out, *lead)
	}
	return out, nil
}

func (s *stubStore) MarkFirstReminderSent(_ context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok || lead.FirstReminderAt != nil {
		return false, nil
	}
	lead.FirstReminderAt = &at
	return true, nil
}

func (s *stubStore) MarkFinalReminderSent(_ context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok || lead.FinalReminderAt != nil {
		return false, nil
	}
	lead.FinalReminderAt = &at
	return true, nil
}

func (s *stubStore) GetUser(_ context.Context, id uuid.UUID) (repository.User, error) {
	return repository.User{ID: id, Name: "seller", Email: "seller@example.com"}, nil
}

type stubEscalator struct {
	mu     sync.Mutex
	calls  []uuid.UUID
	errFor map[uuid.UUID]error
}

func (e *stubEscalator) EscalateTimeout(_ context.Context, leadID uuid.UUID) (repository.Lead, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, leadID)
	if err := e.errFor[leadID]; err != nil {
		return repository.Lead{}, err
	}
	return repository.Lead{ID: leadID}, nil
}

type reminderCall struct {
	leadID uuid.UUID
	hours  int
	final  bool
}

type stubNotifier struct {
	mu        sync.Mutex
	reminders []reminderCall
}

func (n *stubNotifier) SendAcceptanceReminder(_ context.Context, _ repository.User, lead repository.Lead, hours int, final bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, reminderCall{leadID: lead.ID, hours: hours, final: final})
	return nil
}

func (n *stubNotifier) SendManagerTimeoutNotice(_ context.Context, _, _ repository.User, _ repository.Lead) error {
	return nil
}

func newTestMonitor(store *stubStore, escalator *stubEscalator, notifier *stubNotifier, now time.Time) *Monitor {
	m := New(store, escalator, notifier, stubConfig{interval: time.Hour}, nil)
	m.now = func() time.Time { return now }
	return m
}

func TestRunTickAppliesStageByElapsedTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	fresh := store.addPending(3*time.Hour, now)
	firstDue := store.addPending(7*time.Hour, now)
	finalDue := store.addPending(11*time.Hour+30*time.Minute, now)
	timedOut := store.addPending(13*time.Hour, now)

	escalator := &stubEscalator{}
	notifier := &stubNotifier{}
	m := newTestMonitor(store, escalator, notifier, now)

	if err := m.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(escalator.calls) != 1 || escalator.calls[0] != timedOut {
		t.Errorf("escalations = %v, want just %s", escalator.calls, timedOut)
	}

	got := map[uuid.UUID]reminderCall{}
	for _, call := range notifier.reminders {
		got[call.leadID] = call
	}
	if _, ok := got[fresh]; ok {
		t.Errorf("reminder sent for a 3h-old assignment")
	}
	if call, ok := got[firstDue]; !ok || call.final {
		t.Errorf("7h lead: got %+v, want a first reminder", call)
	}
	if call, ok := got[finalDue]; !ok || !call.final {
		t.Errorf("11.5h lead: got %+v, want the final reminder", call)
	}
	if _, ok := got[timedOut]; ok {
		t.Errorf("reminder sent for a lead that already timed out")
	}
}

func TestRemindersAreSingleShot(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	store.addPending(7*time.Hour, now)

	escalator := &stubEscalator{}
	notifier := &stubNotifier{}
	m := newTestMonitor(store, escalator, notifier, now)

	for i := 0; i < 3; i++ {
		if err := m.RunTick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if len(notifier.reminders) != 1 {
		t.Errorf("first reminder sent %d times, want 1", len(notifier.reminders))
	}
}

func TestDelayedPollingJumpsToTimeout(t *testing.T) {
	// Monitor was down past both reminder thresholds. The lead goes
	// straight to timeout; no stale reminders are sent.
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	lead := store.addPending(13*time.Hour, now)

	escalator := &stubEscalator{}
	notifier := &stubNotifier{}
	m := newTestMonitor(store, escalator, notifier, now)

	if err := m.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(escalator.calls) != 1 || escalator.calls[0] != lead {
		t.Errorf("escalations = %v", escalator.calls)
	}
	if len(notifier.reminders) != 0 {
		t.Errorf("stale reminders sent: %+v", notifier.reminders)
	}
}

func TestUnresolvedTimeoutIsReescalated(t *testing.T) {
	// A pending lead whose timeout marker is already set means an earlier
	// escalation claimed the timeout but never finished reassigning or
	// releasing. The sweep must hand it back to the escalator instead of
	// skipping it forever.
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	leadID := store.addPending(14*time.Hour, now)
	claimed := now.Add(-time.Hour)
	store.leads[leadID].TimeoutNotifiedAt = &claimed

	escalator := &stubEscalator{}
	notifier := &stubNotifier{}
	m := newTestMonitor(store, escalator, notifier, now)

	if err := m.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(escalator.calls) != 1 || escalator.calls[0] != leadID {
		t.Errorf("escalations = %v, want retry for %s", escalator.calls, leadID)
	}
	if len(notifier.reminders) != 0 {
		t.Errorf("reminders sent for a timed-out lead: %+v", notifier.reminders)
	}
}

func TestFinalReminderAfterFirstWasSent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	leadID := store.addPending(11*time.Hour+15*time.Minute, now)
	firstAt := now.Add(-5 * time.Hour)
	store.leads[leadID].FirstReminderAt = &firstAt

	escalator := &stubEscalator{}
	notifier := &stubNotifier{}
	m := newTestMonitor(store, escalator, notifier, now)

	if err := m.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(notifier.reminders) != 1 || !notifier.reminders[0].final {
		t.Fatalf("reminders = %+v, want one final reminder", notifier.reminders)
	}
	if notifier.reminders[0].hours != 1 {
		t.Errorf("hours remaining = %d, want 1", notifier.reminders[0].hours)
	}
}

func TestTickContinuesPastFailingLead(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newStubStore()
	bad := store.addPending(13*time.Hour, now)
	good := store.addPending(14*time.Hour, now)

	escalator := &stubEscalator{errFor: map[uuid.UUID]error{bad: errors.New("boom")}}
	m := newTestMonitor(store, escalator, &stubNotifier{}, now)

	if err := m.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range escalator.calls {
		seen[id] = true
	}
	if !seen[bad] || !seen[good] {
		t.Errorf("escalation calls = %v, want both leads attempted", escalator.calls)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	store := newStubStore()
	escalator := &stubEscalator{}
	m := New(store, escalator, &stubNotifier{}, stubConfig{interval: 5 * time.Millisecond}, nil)

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx) // second Start must not spawn a second loop

	time.Sleep(25 * time.Millisecond)

	m.Stop()
	m.Stop() // second Stop must not panic or block

	store.mu.Lock()
	ticks := store.ticks
	store.mu.Unlock()
	if ticks == 0 {
		t.Fatal("loop never ticked")
	}

	time.Sleep(15 * time.Millisecond)
	store.mu.Lock()
	after := store.ticks
	store.mu.Unlock()
	if after != ticks {
		t.Errorf("loop still ticking after Stop: %d -> %d", ticks, after)
	}
}

package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"leadflow_backend/internal/assignment/domain"
	"leadflow_backend/internal/assignment/repository"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store mirroring the repository's conditional
// update semantics: transitions pin the expected state and report whether
// they won.
type fakeStore struct {
	leads        map[uuid.UUID]*repository.Lead
	entries      []repository.PoolEntry
	users        map[uuid.UUID]repository.User
	lastAssigned map[uuid.UUID]*uuid.UUID
	audits       []repository.AuditEntry
	counters     map[uuid.UUID]map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:        make(map[uuid.UUID]*repository.Lead),
		users:        make(map[uuid.UUID]repository.User),
		lastAssigned: make(map[uuid.UUID]*uuid.UUID),
		counters:     make(map[uuid.UUID]map[string]int),
	}
}

func (f *fakeStore) addSeller(facilityID uuid.UUID, position int) uuid.UUID {
	id := uuid.New()
	f.users[id] = repository.User{ID: id, FacilityID: &facilityID, Name: "seller", Email: id.String() + "@example.com", Role: repository.RoleSeller, IsActive: true}
	f.entries = append(f.entries, repository.PoolEntry{
		ID: uuid.New(), FacilityID: facilityID, SellerID: id, Enabled: true, SortPosition: position,
	})
	return id
}

func (f *fakeStore) addManager(facilityID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.users[id] = repository.User{ID: id, FacilityID: &facilityID, Name: "manager", Email: id.String() + "@example.com", Role: repository.RoleManager, IsActive: true}
	return id
}

func (f *fakeStore) addLead(facilityID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.leads[id] = &repository.Lead{
		ID:               id,
		FacilityID:       &facilityID,
		ConsumerName:     "Consumer",
		Status:           domain.StatusNew,
		AssignmentStatus: string(domain.AssignmentUnassigned),
	}
	return id
}

func (f *fakeStore) ListEligible(_ context.Context, facilityID uuid.UUID) ([]repository.PoolEntry, error) {
	var out []repository.PoolEntry
	for _, e := range f.entries {
		if e.FacilityID == facilityID && e.Enabled {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortPosition < out[j].SortPosition })
	return out, nil
}

func (f *fakeStore) LastAssignedSellerID(_ context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	return f.lastAssigned[facilityID], nil
}

func (f *fakeStore) GetLead(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *lead, nil
}

func (f *fakeStore) ListPendingAcceptance(_ context.Context, assigneeID *uuid.UUID) ([]repository.Lead, error) {
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.AssignedTo == nil {
			continue
		}
		if assigneeID != nil && *lead.AssignedTo != *assigneeID {
			continue
		}
		out = append(out, *lead)
	}
	return out, nil
}

func (f *fakeStore) MarkAssigned(_ context.Context, leadID, sellerID uuid.UUID, at time.Time) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.AssignmentStatus = string(domain.AssignmentPendingAcceptance)
	lead.AssignedTo = &sellerID
	lead.AssignedAt = &at
	outcome := string(domain.OutcomePending)
	lead.AcceptanceOutcome = &outcome
	lead.AcceptedAt, lead.DeclinedAt, lead.DeclineReason = nil, nil, nil
	lead.FirstReminderAt, lead.FinalReminderAt, lead.TimeoutNotifiedAt = nil, nil, nil
	if lead.FacilityID != nil {
		id := sellerID
		f.lastAssigned[*lead.FacilityID] = &id
	}
	return *lead, nil
}

func (f *fakeStore) MarkAccepted(_ context.Context, leadID, sellerID uuid.UUID, at time.Time) (repository.Lead, bool, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, false, nil
	}
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.AssignedTo == nil || *lead.AssignedTo != sellerID {
		return repository.Lead{}, false, nil
	}
	lead.AssignmentStatus = string(domain.AssignmentAccepted)
	outcome := string(domain.OutcomeAccepted)
	lead.AcceptanceOutcome = &outcome
	lead.AcceptedAt = &at
	lead.FirstReminderAt, lead.FinalReminderAt, lead.TimeoutNotifiedAt = nil, nil, nil
	return *lead, true, nil
}

func (f *fakeStore) MarkDeclined(_ context.Context, leadID, sellerID uuid.UUID, reason *string, at time.Time) (repository.Lead, bool, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, false, nil
	}
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.AssignedTo == nil || *lead.AssignedTo != sellerID {
		return repository.Lead{}, false, nil
	}
	outcome := string(domain.OutcomeDeclined)
	lead.AcceptanceOutcome = &outcome
	lead.DeclinedAt = &at
	lead.DeclineReason = reason
	lead.FirstReminderAt, lead.FinalReminderAt, lead.TimeoutNotifiedAt = nil, nil, nil
	return *lead, true, nil
}

func (f *fakeStore) ReleaseToPool(_ context.Context, leadID uuid.UUID, _ time.Time) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.AssignmentStatus = string(domain.AssignmentUnassigned)
	lead.Status = domain.StatusNew
	lead.AssignedTo, lead.AssignedAt = nil, nil
	lead.AcceptanceOutcome, lead.AcceptedAt, lead.DeclinedAt, lead.DeclineReason = nil, nil, nil, nil
	lead.FirstReminderAt, lead.FinalReminderAt, lead.TimeoutNotifiedAt = nil, nil, nil
	return *lead, nil
}

func (f *fakeStore) MarkFirstReminderSent(_ context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.FirstReminderAt != nil {
		return false, nil
	}
	lead.FirstReminderAt = &at
	return true, nil
}

func (f *fakeStore) MarkFinalReminderSent(_ context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.FinalReminderAt != nil {
		return false, nil
	}
	lead.FinalReminderAt = &at
	return true, nil
}

func (f *fakeStore) ClaimTimeout(_ context.Context, leadID, sellerID uuid.UUID, at time.Time) (bool, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) ||
		lead.AssignedTo == nil || *lead.AssignedTo != sellerID || lead.TimeoutNotifiedAt != nil {
		return false, nil
	}
	lead.TimeoutNotifiedAt = &at
	return true, nil
}

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (repository.User, error) {
	user, ok := f.users[id]
	if !ok {
		return repository.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) GetFacilityManager(_ context.Context, facilityID uuid.UUID) (*repository.User, error) {
	for _, user := range f.users {
		if user.Role == repository.RoleManager && user.IsActive && user.FacilityID != nil && *user.FacilityID == facilityID {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) IncrementCounter(_ context.Context, sellerID uuid.UUID, counter string) error {
	if f.counters[sellerID] == nil {
		f.counters[sellerID] = make(map[string]int)
	}
	f.counters[sellerID][counter]++
	return nil
}

func (f *fakeStore) AppendAudit(_ context.Context, params repository.AppendAuditParams) (repository.AuditEntry, error) {
	entry := repository.AuditEntry{
		ID:           uuid.New(),
		LeadID:       params.LeadID,
		FacilityID:   params.FacilityID,
		Action:       params.Action,
		ActorID:      params.ActorID,
		FromSellerID: params.FromSellerID,
		ToSellerID:   params.ToSellerID,
		Detail:       params.Detail,
		CreatedAt:    time.Now(),
	}
	f.audits = append(f.audits, entry)
	return entry, nil
}

func (f *fakeStore) ListAuditByLead(_ context.Context, leadID uuid.UUID) ([]repository.AuditEntry, error) {
	var out []repository.AuditEntry
	for i := len(f.audits) - 1; i >= 0; i-- {
		if f.audits[i].LeadID == leadID {
			out = append(out, f.audits[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ListByFacility(_ context.Context, facilityID uuid.UUID) ([]repository.PoolEntry, error) {
	var out []repository.PoolEntry
	for _, e := range f.entries {
		if e.FacilityID == facilityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPoolEntry(_ context.Context, id uuid.UUID) (repository.PoolEntry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return repository.PoolEntry{}, repository.ErrEntryNotFound
}

func (f *fakeStore) SetEntryEnabled(_ context.Context, facilityID, id uuid.UUID, enabled bool, at time.Time) (repository.PoolEntry, error) {
	for i := range f.entries {
		if f.entries[i].ID == id && f.entries[i].FacilityID == facilityID {
			f.entries[i].Enabled = enabled
			f.entries[i].UpdatedAt = at
			return f.entries[i], nil
		}
	}
	return repository.PoolEntry{}, repository.ErrEntryNotFound
}

func (f *fakeStore) ReorderEntries(_ context.Context, facilityID uuid.UUID, updates []repository.PositionUpdate, at time.Time) error {
	for _, update := range updates {
		found := false
		for i := range f.entries {
			if f.entries[i].ID == update.EntryID && f.entries[i].FacilityID == facilityID {
				f.entries[i].SortPosition = update.SortPosition
				f.entries[i].UpdatedAt = at
				found = true
			}
		}
		if !found {
			return repository.ErrEntryNotFound
		}
	}
	return nil
}

type notifierCall struct {
	kind     string
	sellerID uuid.UUID
	leadID   uuid.UUID
}

type fakeNotifier struct {
	calls []notifierCall
}

func (f *fakeNotifier) SendAcceptanceReminder(_ context.Context, seller repository.User, lead repository.Lead, _ int, final bool) error {
	kind := "reminder"
	if final {
		kind = "final_reminder"
	}
	f.calls = append(f.calls, notifierCall{kind: kind, sellerID: seller.ID, leadID: lead.ID})
	return nil
}

func (f *fakeNotifier) SendManagerTimeoutNotice(_ context.Context, manager, seller repository.User, lead repository.Lead) error {
	f.calls = append(f.calls, notifierCall{kind: "manager_timeout", sellerID: seller.ID, leadID: lead.ID})
	return nil
}

func newTestService(store *fakeStore, notifier Notifier) *Service {
	svc := New(store, notifier, nil, nil)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc
}

func auditActions(entries []repository.AuditEntry) []string {
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestAssignRotatesThroughPool(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	a := store.addSeller(facility, 1)
	b := store.addSeller(facility, 2)
	c := store.addSeller(facility, 3)
	svc := newTestService(store, nil)

	want := []uuid.UUID{a, b, c, a}
	for i, expected := range want {
		leadID := store.addLead(facility)
		lead, err := svc.Assign(context.Background(), leadID)
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		if lead.AssignedTo == nil || *lead.AssignedTo != expected {
			t.Fatalf("assign %d: got %v, want %s", i, lead.AssignedTo, expected)
		}
		if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) {
			t.Errorf("assign %d: status = %s", i, lead.AssignmentStatus)
		}
	}
}

func TestAssignEmptyPool(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	leadID := store.addLead(facility)
	svc := newTestService(store, nil)

	_, err := svc.Assign(context.Background(), leadID)
	if !errors.Is(err, ErrNoEligibleSeller) {
		t.Fatalf("err = %v, want ErrNoEligibleSeller", err)
	}
	lead, _ := store.GetLead(context.Background(), leadID)
	if lead.AssignmentStatus != string(domain.AssignmentUnassigned) {
		t.Errorf("lead left %s, want unassigned", lead.AssignmentStatus)
	}
}

func TestAssignLeadWithoutFacility(t *testing.T) {
	store := newFakeStore()
	leadID := uuid.New()
	store.leads[leadID] = &repository.Lead{ID: leadID, Status: domain.StatusNew, AssignmentStatus: string(domain.AssignmentUnassigned)}
	svc := newTestService(store, nil)

	if _, err := svc.Assign(context.Background(), leadID); !errors.Is(err, ErrNoFacility) {
		t.Fatalf("err = %v, want ErrNoFacility", err)
	}
}

func TestAcceptHappyPath(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	seller := store.addSeller(facility, 1)
	leadID := store.addLead(facility)
	svc := newTestService(store, nil)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	lead, err := svc.Accept(context.Background(), leadID, seller)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if lead.AssignmentStatus != string(domain.AssignmentAccepted) {
		t.Errorf("assignment status = %s", lead.AssignmentStatus)
	}
	if lead.Status != domain.StatusNew {
		t.Errorf("business status = %s, want new", lead.Status)
	}
	if lead.AssignedTo == nil || *lead.AssignedTo != seller {
		t.Errorf("assignee lost on accept")
	}
	if got := store.counters[seller][domain.CounterAccepted]; got != 1 {
		t.Errorf("accepted counter = %d", got)
	}

	trail, _ := store.ListAuditByLead(context.Background(), leadID)
	if got := auditActions(trail); got[0] != repository.AuditActionAccepted {
		t.Errorf("latest audit = %q", got[0])
	}
}

func TestAcceptGuards(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	seller := store.addSeller(facility, 1)
	stranger := uuid.New()
	leadID := store.addLead(facility)
	svc := newTestService(store, nil)

	// Not yet assigned: nobody is the assignee.
	if _, err := svc.Accept(context.Background(), leadID, seller); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("unassigned accept err = %v, want ErrNotAssignee", err)
	}

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(context.Background(), leadID, stranger); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("stranger accept err = %v, want ErrNotAssignee", err)
	}

	// Resolve the cycle, then a second accept must conflict.
	if _, err := svc.Accept(context.Background(), leadID, seller); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(context.Background(), leadID, seller); !errors.Is(err, ErrNotPending) {
		t.Fatalf("double accept err = %v, want ErrNotPending", err)
	}
}

func TestDeclineReassignsToNextExcludingDecliner(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	a := store.addSeller(facility, 1)
	b := store.addSeller(facility, 2)
	leadID := store.addLead(facility)
	svc := newTestService(store, nil)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	reason := "wrong region"
	lead, err := svc.Decline(context.Background(), leadID, a, &reason)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if lead.AssignedTo == nil || *lead.AssignedTo != b {
		t.Fatalf("reassigned to %v, want %s", lead.AssignedTo, b)
	}
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) {
		t.Errorf("status = %s, want pending_acceptance", lead.AssignmentStatus)
	}
	if store.counters[a][domain.CounterDeclined] != 1 || store.counters[a][domain.CounterReassigned] != 1 {
		t.Errorf("counters = %v", store.counters[a])
	}

	trail, _ := store.ListAuditByLead(context.Background(), leadID)
	got := auditActions(trail)
	want := []string{repository.AuditActionReassigned, repository.AuditActionDeclined, repository.AuditActionAssigned}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("audit trail = %v, want %v", got, want)
		}
	}
}

func TestDeclineSingleSellerReleasesLead(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	a := store.addSeller(facility, 1)
	leadID := store.addLead(facility)
	svc := newTestService(store, nil)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	lead, err := svc.Decline(context.Background(), leadID, a, nil)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if lead.AssignmentStatus != string(domain.AssignmentUnassigned) {
		t.Fatalf("status = %s, want unassigned", lead.AssignmentStatus)
	}
	if lead.AssignedTo != nil {
		t.Errorf("assignee not cleared")
	}
	// The lead must never be stuck pending with nobody responsible.
	pending, _ := store.ListPendingAcceptance(context.Background(), nil)
	if len(pending) != 0 {
		t.Errorf("%d leads still pending after release", len(pending))
	}
	if store.counters[a][domain.CounterReassigned] != 0 {
		t.Errorf("reassigned counter bumped on release")
	}
}

func TestEscalateTimeoutReassignsAndNotifiesManager(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	a := store.addSeller(facility, 1)
	b := store.addSeller(facility, 2)
	store.addManager(facility)
	leadID := store.addLead(facility)
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	lead, err := svc.EscalateTimeout(context.Background(), leadID)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if lead.AssignedTo == nil || *lead.AssignedTo != b {
		t.Fatalf("reassigned to %v, want %s", lead.AssignedTo, b)
	}
	if store.counters[a][domain.CounterTimedOut] != 1 {
		t.Errorf("timed out counter = %d", store.counters[a][domain.CounterTimedOut])
	}

	trail, _ := store.ListAuditByLead(context.Background(), leadID)
	found := false
	for _, entry := range trail {
		if entry.Action == repository.AuditActionAutoDecline {
			found = true
			if entry.FromSellerID == nil || *entry.FromSellerID != a {
				t.Errorf("auto-decline from = %v, want %s", entry.FromSellerID, a)
			}
			if entry.ToSellerID == nil || *entry.ToSellerID != b {
				t.Errorf("auto-decline to = %v, want %s", entry.ToSellerID, b)
			}
		}
	}
	if !found {
		t.Fatalf("no auto-decline audit entry, trail = %v", auditActions(trail))
	}

	if len(notifier.calls) != 1 || notifier.calls[0].kind != "manager_timeout" || notifier.calls[0].sellerID != a {
		t.Errorf("notifier calls = %+v", notifier.calls)
	}
}

func TestEscalateTimeoutSingleSellerReleases(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	store.addSeller(facility, 1)
	store.addManager(facility)
	leadID := store.addLead(facility)
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	lead, err := svc.EscalateTimeout(context.Background(), leadID)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if lead.AssignmentStatus != string(domain.AssignmentUnassigned) {
		t.Fatalf("status = %s, want unassigned", lead.AssignmentStatus)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("manager not notified on release")
	}
}

func TestEscalateTimeoutNoOpWhenResolved(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	seller := store.addSeller(facility, 1)
	leadID := store.addLead(facility)
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(context.Background(), leadID, seller); err != nil {
		t.Fatal(err)
	}

	lead, err := svc.EscalateTimeout(context.Background(), leadID)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if lead.AssignmentStatus != string(domain.AssignmentAccepted) {
		t.Errorf("accepted lead touched by escalation: %s", lead.AssignmentStatus)
	}
	if store.counters[seller][domain.CounterTimedOut] != 0 {
		t.Errorf("timed out counter bumped on no-op")
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier called on no-op: %+v", notifier.calls)
	}
}

func TestEscalateTimeoutFiresOnce(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	a := store.addSeller(facility, 1)
	store.addManager(facility)
	leadID := store.addLead(facility)
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EscalateTimeout(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EscalateTimeout(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	if store.counters[a][domain.CounterTimedOut] != 1 {
		t.Errorf("timed out counter = %d, want 1", store.counters[a][domain.CounterTimedOut])
	}
	if len(notifier.calls) != 1 {
		t.Errorf("manager notified %d times, want 1", len(notifier.calls))
	}
}

// flakyAssignStore injects transient MarkAssigned failures to exercise an
// escalation that wins the timeout claim but dies before resolving.
type flakyAssignStore struct {
	*fakeStore
	assignFailures int
}

func (f *flakyAssignStore) MarkAssigned(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (repository.Lead, error) {
	if f.assignFailures > 0 {
		f.assignFailures--
		return repository.Lead{}, errors.New("connection reset")
	}
	return f.fakeStore.MarkAssigned(ctx, leadID, sellerID, at)
}

func TestEscalateTimeoutResumesAfterPartialFailure(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	a := store.addSeller(facility, 1)
	b := store.addSeller(facility, 2)
	store.addManager(facility)
	leadID := store.addLead(facility)
	notifier := &fakeNotifier{}

	flaky := &flakyAssignStore{fakeStore: store}
	svc := New(flaky, notifier, nil, nil)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}

	// First escalation wins the claim but the reassignment write fails.
	flaky.assignFailures = 1
	if _, err := svc.EscalateTimeout(context.Background(), leadID); err == nil {
		t.Fatal("expected escalation to fail on the reassignment write")
	}
	lead, _ := store.GetLead(context.Background(), leadID)
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.TimeoutNotifiedAt == nil {
		t.Fatalf("after failed escalation: status=%s marker=%v", lead.AssignmentStatus, lead.TimeoutNotifiedAt)
	}

	// The next attempt must finish the reassignment instead of treating
	// the spent claim as an already-handled timeout.
	lead, err := svc.EscalateTimeout(context.Background(), leadID)
	if err != nil {
		t.Fatalf("retry escalation: %v", err)
	}
	if lead.AssignedTo == nil || *lead.AssignedTo != b {
		t.Fatalf("retry left lead with %v, want %s", lead.AssignedTo, b)
	}
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.TimeoutNotifiedAt != nil {
		t.Errorf("new cycle not reset: status=%s marker=%v", lead.AssignmentStatus, lead.TimeoutNotifiedAt)
	}

	// The one-shot effects rode the original claim and must not repeat.
	if got := store.counters[a][domain.CounterTimedOut]; got != 1 {
		t.Errorf("timed out counter = %d, want 1", got)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].kind != "manager_timeout" {
		t.Errorf("notifier calls = %+v, want one manager notice", notifier.calls)
	}
}

func TestAcceptKeepsWorkingStatus(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	seller := store.addSeller(facility, 1)
	leadID := store.addLead(facility)
	store.leads[leadID].Status = domain.StatusContacted
	svc := newTestService(store, nil)

	if _, err := svc.Assign(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	lead, err := svc.Accept(context.Background(), leadID, seller)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if lead.Status != domain.StatusContacted {
		t.Errorf("business status = %s, want contacted preserved", lead.Status)
	}
}

func TestReorderPoolChangesRotationOrder(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	store.addSeller(facility, 1)
	b := store.addSeller(facility, 2)
	svc := newTestService(store, nil)

	updates := []repository.PositionUpdate{
		{EntryID: store.entries[0].ID, SortPosition: 2},
		{EntryID: store.entries[1].ID, SortPosition: 1},
	}
	if _, err := svc.ReorderPool(context.Background(), facility, updates); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	leadID := store.addLead(facility)
	lead, err := svc.Assign(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}
	if lead.AssignedTo == nil || *lead.AssignedTo != b {
		t.Errorf("first assignment after reorder = %v, want %s", lead.AssignedTo, b)
	}
}

func TestSetPoolEntryEnabledExcludesFromRotation(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	store.addSeller(facility, 1)
	b := store.addSeller(facility, 2)
	svc := newTestService(store, nil)

	if _, err := svc.SetPoolEntryEnabled(context.Background(), facility, store.entries[0].ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	leadID := store.addLead(facility)
	lead, err := svc.Assign(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}
	if lead.AssignedTo == nil || *lead.AssignedTo != b {
		t.Errorf("assigned to %v, want %s (the only enabled seller)", lead.AssignedTo, b)
	}
}

func TestSetPoolEntryEnabledRejectsForeignFacility(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	otherFacility := uuid.New()
	store.addSeller(facility, 1)
	svc := newTestService(store, nil)

	_, err := svc.SetPoolEntryEnabled(context.Background(), otherFacility, store.entries[0].ID, false)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("err = %v, want ErrEntryNotFound", err)
	}
	if !store.entries[0].Enabled {
		t.Errorf("entry toggled through another facility's id")
	}
}

func TestReorderPoolRejectsDuplicatePositions(t *testing.T) {
	store := newFakeStore()
	facility := uuid.New()
	store.addSeller(facility, 1)
	store.addSeller(facility, 2)
	svc := newTestService(store, nil)

	updates := []repository.PositionUpdate{
		{EntryID: store.entries[0].ID, SortPosition: 1},
		{EntryID: store.entries[1].ID, SortPosition: 1},
	}
	if _, err := svc.ReorderPool(context.Background(), facility, updates); !errors.Is(err, ErrDuplicatePosition) {
		t.Fatalf("err = %v, want ErrDuplicatePosition", err)
	}
	if store.entries[0].SortPosition != 1 || store.entries[1].SortPosition != 2 {
		t.Errorf("positions changed by a rejected reorder: %d, %d",
			store.entries[0].SortPosition, store.entries[1].SortPosition)
	}
}

// Package service implements the lead assignment state machine: assign,
// accept, decline, reassign-or-release and timeout escalation.
//
// Transitions are applied as conditional updates against the lead's current
// assignment state, so a request handler and the acceptance monitor racing
// on the same lead resolve to exactly one winner; the loser observes a
// benign conflict and changes nothing.
package service

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/internal/assignment/domain"
	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/rotation"
	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	// ErrLeadNotFound is returned when the referenced lead does not exist.
	ErrLeadNotFound = apperr.NotFound("lead not found")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = apperr.NotFound("user not found")
	// ErrEntryNotFound is returned when the referenced pool entry does not exist.
	ErrEntryNotFound = apperr.NotFound("pool entry not found")
	// ErrNotAssignee is returned when accept/decline is attempted by someone
	// other than the lead's current assignee.
	ErrNotAssignee = apperr.Forbidden("only the current assignee may respond to this lead")
	// ErrNotPending is returned when accept/decline is attempted while the
	// lead is not awaiting acceptance. This includes losing a race against a
	// concurrent resolution and is a benign conflict, not a system error.
	ErrNotPending = apperr.Conflict("lead is not awaiting acceptance")
	// ErrNoEligibleSeller is returned by Assign when the facility has no
	// eligible seller. It is a valid outcome callers surface as "no seller
	// currently available", distinguishable from hard failures.
	ErrNoEligibleSeller = apperr.Conflict("no eligible seller available")
	// ErrNoFacility is returned when a lead without a facility is auto-assigned.
	ErrNoFacility = apperr.Validation("lead has no facility and cannot be auto-assigned")
	// ErrDuplicatePosition is returned when a pool reorder assigns the same
	// sort position to more than one entry.
	ErrDuplicatePosition = apperr.Validation("duplicate sort position in reorder")
)

// Store is the storage capability consumed by the assignment service.
// Implemented by the assignment repository.
type Store interface {
	rotation.PoolReader

	GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListPendingAcceptance(ctx context.Context, assigneeID *uuid.UUID) ([]repository.Lead, error)
	MarkAssigned(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (repository.Lead, error)
	MarkAccepted(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (repository.Lead, bool, error)
	MarkDeclined(ctx context.Context, leadID, sellerID uuid.UUID, reason *string, at time.Time) (repository.Lead, bool, error)
	ReleaseToPool(ctx context.Context, leadID uuid.UUID, at time.Time) (repository.Lead, error)
	MarkFirstReminderSent(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error)
	MarkFinalReminderSent(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error)
	ClaimTimeout(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (bool, error)

	GetUser(ctx context.Context, id uuid.UUID) (repository.User, error)
	GetFacilityManager(ctx context.Context, facilityID uuid.UUID) (*repository.User, error)
	IncrementCounter(ctx context.Context, sellerID uuid.UUID, counter string) error

	AppendAudit(ctx context.Context, params repository.AppendAuditParams) (repository.AuditEntry, error)
	ListAuditByLead(ctx context.Context, leadID uuid.UUID) ([]repository.AuditEntry, error)

	ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]repository.PoolEntry, error)
	GetPoolEntry(ctx context.Context, id uuid.UUID) (repository.PoolEntry, error)
	SetEntryEnabled(ctx context.Context, facilityID, id uuid.UUID, enabled bool, at time.Time) (repository.PoolEntry, error)
	ReorderEntries(ctx context.Context, facilityID uuid.UUID, updates []repository.PositionUpdate, at time.Time) error
}

// Notifier is the outbound notification capability. Sends are best-effort:
// failures are logged by the caller and never roll back a state transition.
type Notifier interface {
	// SendAcceptanceReminder nudges the assignee. final marks the 11h
	// last-call reminder as opposed to the 6h first reminder.
	SendAcceptanceReminder(ctx context.Context, seller repository.User, lead repository.Lead, hoursRemaining int, final bool) error
	// SendManagerTimeoutNotice informs the facility manager that the seller
	// let a lead time out.
	SendManagerTimeoutNotice(ctx context.Context, manager, seller repository.User, lead repository.Lead) error
}

// Service is the assignment state machine.
type Service struct {
	store    Store
	selector *rotation.Selector
	notifier Notifier
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(store Store, notifier Notifier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		selector: rotation.New(store),
		notifier: notifier,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Assign picks the next seller in the facility's rotation and puts the lead
// into pending acceptance for them.
func (s *Service) Assign(ctx context.Context, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return repository.Lead{}, mapLeadErr(err)
	}
	if lead.FacilityID == nil {
		return repository.Lead{}, ErrNoFacility
	}

	next, err := s.selector.SelectNext(ctx, *lead.FacilityID)
	if err != nil {
		return repository.Lead{}, err
	}
	if next == nil {
		return lead, ErrNoEligibleSeller
	}

	previous := lead.AssignedTo
	updated, err := s.store.MarkAssigned(ctx, leadID, *next, s.now())
	if err != nil {
		return repository.Lead{}, mapLeadErr(err)
	}

	if _, err := s.store.AppendAudit(ctx, repository.AppendAuditParams{
		LeadID:       leadID,
		FacilityID:   lead.FacilityID,
		Action:       repository.AuditActionAssigned,
		FromSellerID: previous,
		ToSellerID:   next,
	}); err != nil {
		return repository.Lead{}, err
	}

	s.publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		FacilityID:     *lead.FacilityID,
		SellerID:       *next,
		PreviousSeller: previous,
	})

	return updated, nil
}

// Accept confirms the lead for the acting user. The actor must be the
// current assignee and the lead must still be awaiting acceptance.
func (s *Service) Accept(ctx context.Context, leadID, actorID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return repository.Lead{}, mapLeadErr(err)
	}
	if err := guardPendingAssignee(lead, actorID); err != nil {
		return repository.Lead{}, err
	}

	updated, won, err := s.store.MarkAccepted(ctx, leadID, actorID, s.now())
	if err != nil {
		return repository.Lead{}, err
	}
	if !won {
		// A concurrent decline or timeout resolved the cycle first.
		return repository.Lead{}, ErrNotPending
	}

	if err := s.store.IncrementCounter(ctx, actorID, domain.CounterAccepted); err != nil {
		return repository.Lead{}, err
	}

	if _, err := s.store.AppendAudit(ctx, repository.AppendAuditParams{
		LeadID:     leadID,
		FacilityID: updated.FacilityID,
		Action:     repository.AuditActionAccepted,
		ActorID:    &actorID,
	}); err != nil {
		return repository.Lead{}, err
	}

	s.publish(ctx, events.LeadAccepted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		SellerID:  actorID,
	})

	return updated, nil
}

// Decline records the assignee's refusal and immediately reassigns the lead
// to the next candidate, or releases it to the unassigned pool when none
// exists. A declined lead is never left awaiting acceptance.
func (s *Service) Decline(ctx context.Context, leadID, actorID uuid.UUID, reason *string) (repository.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return repository.Lead{}, mapLeadErr(err)
	}
	if err := guardPendingAssignee(lead, actorID); err != nil {
		return repository.Lead{}, err
	}

	declined, won, err := s.store.MarkDeclined(ctx, leadID, actorID, reason, s.now())
	if err != nil {
		return repository.Lead{}, err
	}
	if !won {
		return repository.Lead{}, ErrNotPending
	}

	if err := s.store.IncrementCounter(ctx, actorID, domain.CounterDeclined); err != nil {
		return repository.Lead{}, err
	}

	if _, err := s.store.AppendAudit(ctx, repository.AppendAuditParams{
		LeadID:       leadID,
		FacilityID:   declined.FacilityID,
		Action:       repository.AuditActionDeclined,
		ActorID:      &actorID,
		FromSellerID: &actorID,
		Detail:       reason,
	}); err != nil {
		return repository.Lead{}, err
	}

	s.publish(ctx, events.LeadDeclined{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		SellerID:  actorID,
		Reason:    derefString(reason),
	})

	updated, target, err := s.reassignOrRelease(ctx, declined, actorID)
	if err != nil {
		return repository.Lead{}, err
	}

	if target != nil {
		if _, err := s.store.AppendAudit(ctx, repository.AppendAuditParams{
			LeadID:       leadID,
			FacilityID:   declined.FacilityID,
			Action:       repository.AuditActionReassigned,
			FromSellerID: &actorID,
			ToSellerID:   target,
		}); err != nil {
			return repository.Lead{}, err
		}
	}

	return updated, nil
}

// EscalateTimeout handles a lead whose acceptance window elapsed with no
// response. The timeout marker is claimed at most once per cycle and gates
// only the one-shot effects: the seller's counter, the timed-out event and
// the manager notice. The reassign-or-release resolution runs after the
// claim and is retried by later sweeps if it fails, so a lead can never be
// stranded pending acceptance with the marker set. A lead already resolved
// by a concurrent accept/decline makes this a no-op.
func (s *Service) EscalateTimeout(ctx context.Context, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return repository.Lead{}, mapLeadErr(err)
	}
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) || lead.AssignedTo == nil {
		return lead, nil
	}
	sellerID := *lead.AssignedTo

	// A set marker on a still-pending lead means an earlier attempt won the
	// claim but failed before resolving; skip the one-shot effects and
	// finish the resolution below.
	if lead.TimeoutNotifiedAt == nil {
		won, err := s.store.ClaimTimeout(ctx, leadID, sellerID, s.now())
		if err != nil {
			return repository.Lead{}, err
		}
		if !won {
			return lead, nil
		}

		if err := s.store.IncrementCounter(ctx, sellerID, domain.CounterTimedOut); err != nil {
			// The claim is already spent; failing here would leave the
			// lead unresolved. Log the lost counter bump and carry on.
			if s.log != nil {
				s.log.Error("timeout counter update failed",
					"lead_id", leadID, "seller_id", sellerID, "error", err)
			}
		}

		if lead.FacilityID != nil {
			s.publish(ctx, events.LeadAssignmentTimedOut{
				BaseEvent:  events.NewBaseEvent(),
				LeadID:     leadID,
				FacilityID: *lead.FacilityID,
				SellerID:   sellerID,
			})
		}

		s.notifyManagerTimeout(ctx, lead, sellerID)
	}

	updated, target, err := s.reassignOrRelease(ctx, lead, sellerID)
	if err != nil {
		return repository.Lead{}, err
	}

	if _, err := s.store.AppendAudit(ctx, repository.AppendAuditParams{
		LeadID:       leadID,
		FacilityID:   lead.FacilityID,
		Action:       repository.AuditActionAutoDecline,
		FromSellerID: &sellerID,
		ToSellerID:   target,
	}); err != nil {
		return repository.Lead{}, err
	}

	return updated, nil
}

// PendingAcceptance lists leads awaiting acceptance, optionally for one assignee.
func (s *Service) PendingAcceptance(ctx context.Context, assigneeID *uuid.UUID) ([]repository.Lead, error) {
	return s.store.ListPendingAcceptance(ctx, assigneeID)
}

// AuditTrail returns the lead's assignment audit entries, newest first.
func (s *Service) AuditTrail(ctx context.Context, leadID uuid.UUID) ([]repository.AuditEntry, error) {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return nil, mapLeadErr(err)
	}
	return s.store.ListAuditByLead(ctx, leadID)
}

// reassignOrRelease moves the lead to the next candidate excluding the
// seller who declined or timed out, or reverts it to the unassigned pool
// when no candidate exists. Returns the updated lead and the new assignee,
// nil when the lead was released.
func (s *Service) reassignOrRelease(ctx context.Context, lead repository.Lead, excludeSellerID uuid.UUID) (repository.Lead, *uuid.UUID, error) {
	var target *uuid.UUID
	if lead.FacilityID != nil {
		next, err := s.selector.SelectNextExcluding(ctx, *lead.FacilityID, excludeSellerID)
		if err != nil {
			return repository.Lead{}, nil, err
		}
		target = next
	}

	if target == nil {
		updated, err := s.store.ReleaseToPool(ctx, lead.ID, s.now())
		if err != nil {
			return repository.Lead{}, nil, mapLeadErr(err)
		}
		if lead.FacilityID != nil {
			s.publish(ctx, events.LeadReleased{
				BaseEvent:  events.NewBaseEvent(),
				LeadID:     lead.ID,
				FacilityID: *lead.FacilityID,
			})
		}
		return updated, nil, nil
	}

	if err := s.store.IncrementCounter(ctx, excludeSellerID, domain.CounterReassigned); err != nil {
		return repository.Lead{}, nil, err
	}

	updated, err := s.store.MarkAssigned(ctx, lead.ID, *target, s.now())
	if err != nil {
		return repository.Lead{}, nil, mapLeadErr(err)
	}

	s.publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		FacilityID:     *lead.FacilityID,
		SellerID:       *target,
		PreviousSeller: &excludeSellerID,
	})

	return updated, target, nil
}

// notifyManagerTimeout sends the manager timeout notice best-effort.
// A missing manager or a failed send is logged and never propagated.
func (s *Service) notifyManagerTimeout(ctx context.Context, lead repository.Lead, sellerID uuid.UUID) {
	if s.notifier == nil || lead.FacilityID == nil {
		return
	}

	manager, err := s.store.GetFacilityManager(ctx, *lead.FacilityID)
	if err != nil {
		s.logNotifyErr("manager lookup failed", lead.ID, err)
		return
	}
	if manager == nil {
		if s.log != nil {
			s.log.Warn("facility has no active manager for timeout notice",
				"lead_id", lead.ID, "facility_id", *lead.FacilityID)
		}
		return
	}

	seller, err := s.store.GetUser(ctx, sellerID)
	if err != nil {
		s.logNotifyErr("seller lookup failed", lead.ID, err)
		return
	}

	if err := s.notifier.SendManagerTimeoutNotice(ctx, *manager, seller, lead); err != nil {
		s.logNotifyErr("manager timeout notice failed", lead.ID, err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

func (s *Service) logNotifyErr(msg string, leadID uuid.UUID, err error) {
	if s.log != nil {
		s.log.NotificationError(msg, leadID.String(), err)
	}
}

func guardPendingAssignee(lead repository.Lead, actorID uuid.UUID) error {
	if lead.AssignedTo == nil || *lead.AssignedTo != actorID {
		return ErrNotAssignee
	}
	if lead.AssignmentStatus != string(domain.AssignmentPendingAcceptance) {
		return ErrNotPending
	}
	return nil
}

func mapLeadErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrLeadNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrEntryNotFound):
		return ErrEntryNotFound
	default:
		return err
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

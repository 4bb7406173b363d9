// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Assignment Domain Events
// =============================================================================

// LeadAssigned is published when a lead enters pending acceptance for a seller.
// PreviousSeller is set when the assignment is a reassignment after a decline
// or timeout, nil for a fresh assignment from the unassigned pool.
type LeadAssigned struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	FacilityID     uuid.UUID  `json:"facilityId"`
	SellerID       uuid.UUID  `json:"sellerId"`
	PreviousSeller *uuid.UUID `json:"previousSeller,omitempty"`
}

func (e LeadAssigned) EventName() string { return "assignment.lead.assigned" }

// LeadAccepted is published when the assignee confirms a lead.
type LeadAccepted struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	SellerID uuid.UUID `json:"sellerId"`
}

func (e LeadAccepted) EventName() string { return "assignment.lead.accepted" }

// LeadDeclined is published when the assignee declines a lead.
type LeadDeclined struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	SellerID uuid.UUID `json:"sellerId"`
	Reason   string    `json:"reason,omitempty"`
}

func (e LeadDeclined) EventName() string { return "assignment.lead.declined" }

// LeadAssignmentTimedOut is published when the acceptance window elapsed
// without a response and the monitor escalated the lead.
type LeadAssignmentTimedOut struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	FacilityID uuid.UUID `json:"facilityId"`
	SellerID   uuid.UUID `json:"sellerId"`
}

func (e LeadAssignmentTimedOut) EventName() string { return "assignment.lead.timed_out" }

// LeadReleased is published when no eligible seller remained and the lead
// reverted to the unassigned pool.
type LeadReleased struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	FacilityID uuid.UUID `json:"facilityId"`
}

func (e LeadReleased) EventName() string { return "assignment.lead.released" }

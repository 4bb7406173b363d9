// Package transport defines the request and response DTOs for the
// assignment HTTP API.
package transport

import (
	"time"

	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"

	"github.com/google/uuid"
)

// DeclineLeadRequest carries the optional decline reason.
type DeclineLeadRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// SetEntryEnabledRequest toggles a pool entry's rotation eligibility.
type SetEntryEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ReorderPoolRequest applies new sort positions to a facility's pool.
type ReorderPoolRequest struct {
	Entries []ReorderPoolEntry `json:"entries" validate:"required,min=1,dive"`
}

// ReorderPoolEntry is one entry's new position within a reorder.
type ReorderPoolEntry struct {
	EntryID      uuid.UUID `json:"entryId" validate:"required"`
	SortPosition int       `json:"sortPosition" validate:"min=0"`
}

// LeadResponse is the assignment view of a lead.
type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	FacilityID        *uuid.UUID `json:"facilityId,omitempty"`
	ConsumerName      string     `json:"consumerName"`
	ConsumerPhone     *string    `json:"consumerPhone,omitempty"`
	ConsumerEmail     *string    `json:"consumerEmail,omitempty"`
	Source            *string    `json:"source,omitempty"`
	Status            string     `json:"status"`
	AssignmentStatus  string     `json:"assignmentStatus"`
	AssignedTo        *uuid.UUID `json:"assignedTo,omitempty"`
	AssignedAt        *time.Time `json:"assignedAt,omitempty"`
	AcceptanceOutcome *string    `json:"acceptanceOutcome,omitempty"`
	AcceptedAt        *time.Time `json:"acceptedAt,omitempty"`
	DeclinedAt        *time.Time `json:"declinedAt,omitempty"`
	DeclineReason     *string    `json:"declineReason,omitempty"`
	EscalationStage   string     `json:"escalationStage"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ToLeadResponse maps a stored lead to its API representation.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                lead.ID,
		FacilityID:        lead.FacilityID,
		ConsumerName:      lead.ConsumerName,
		ConsumerPhone:     lead.ConsumerPhone,
		ConsumerEmail:     lead.ConsumerEmail,
		Source:            lead.Source,
		Status:            lead.Status,
		AssignmentStatus:  lead.AssignmentStatus,
		AssignedTo:        lead.AssignedTo,
		AssignedAt:        lead.AssignedAt,
		AcceptanceOutcome: lead.AcceptanceOutcome,
		AcceptedAt:        lead.AcceptedAt,
		DeclinedAt:        lead.DeclinedAt,
		DeclineReason:     lead.DeclineReason,
		EscalationStage:   string(lead.Markers().Stage()),
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

// ToLeadResponses maps a slice of leads.
func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, len(leads))
	for i, lead := range leads {
		out[i] = ToLeadResponse(lead)
	}
	return out
}

// SellerSummary is the seller view embedded in pool listings, with the
// response counters kept on the user record.
type SellerSummary struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	IsActive        bool      `json:"isActive"`
	AcceptedCount   int       `json:"acceptedCount"`
	DeclinedCount   int       `json:"declinedCount"`
	ReassignedCount int       `json:"reassignedCount"`
	TimedOutCount   int       `json:"timedOutCount"`
}

// PoolEntryResponse is one rotation slot in a facility's pool.
type PoolEntryResponse struct {
	ID           uuid.UUID     `json:"id"`
	FacilityID   uuid.UUID     `json:"facilityId"`
	Enabled      bool          `json:"enabled"`
	SortPosition int           `json:"sortPosition"`
	Seller       SellerSummary `json:"seller"`
}

// ToPoolEntryResponse maps a pool member to its API representation.
func ToPoolEntryResponse(member service.PoolMember) PoolEntryResponse {
	return PoolEntryResponse{
		ID:           member.Entry.ID,
		FacilityID:   member.Entry.FacilityID,
		Enabled:      member.Entry.Enabled,
		SortPosition: member.Entry.SortPosition,
		Seller: SellerSummary{
			ID:              member.Seller.ID,
			Name:            member.Seller.Name,
			Email:           member.Seller.Email,
			IsActive:        member.Seller.IsActive,
			AcceptedCount:   member.Seller.AcceptedCount,
			DeclinedCount:   member.Seller.DeclinedCount,
			ReassignedCount: member.Seller.ReassignedCount,
			TimedOutCount:   member.Seller.TimedOutCount,
		},
	}
}

// ToPoolEntryResponses maps a slice of pool members.
func ToPoolEntryResponses(members []service.PoolMember) []PoolEntryResponse {
	out := make([]PoolEntryResponse, len(members))
	for i, member := range members {
		out[i] = ToPoolEntryResponse(member)
	}
	return out
}

// AuditEntryResponse is one line in a lead's assignment audit trail.
type AuditEntryResponse struct {
	ID           uuid.UUID  `json:"id"`
	LeadID       uuid.UUID  `json:"leadId"`
	FacilityID   *uuid.UUID `json:"facilityId,omitempty"`
	Action       string     `json:"action"`
	ActorID      *uuid.UUID `json:"actorId,omitempty"`
	FromSellerID *uuid.UUID `json:"fromSellerId,omitempty"`
	ToSellerID   *uuid.UUID `json:"toSellerId,omitempty"`
	Detail       *string    `json:"detail,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ToAuditEntryResponses maps a lead's audit trail.
func ToAuditEntryResponses(entries []repository.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = AuditEntryResponse{
			ID:           entry.ID,
			LeadID:       entry.LeadID,
			FacilityID:   entry.FacilityID,
			Action:       entry.Action,
			ActorID:      entry.ActorID,
			FromSellerID: entry.FromSellerID,
			ToSellerID:   entry.ToSellerID,
			Detail:       entry.Detail,
			CreatedAt:    entry.CreatedAt,
		}
	}
	return out
}

// SweepResponse acknowledges a manually triggered acceptance sweep.
type SweepResponse struct {
	Status string `json:"status"`
}

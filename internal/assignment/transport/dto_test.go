package transport_test

import (
	"testing"
	"time"

	"leadflow_backend/internal/assignment/domain"
	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"
	"leadflow_backend/internal/assignment/transport"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestToLeadResponse(t *testing.T) {
	facilityID := uuid.New()
	sellerID := uuid.New()
	assignedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	phone := "+31 6 1234 5678"
	lead := repository.Lead{
		ID:               uuid.New(),
		FacilityID:       &facilityID,
		ConsumerName:     "Jansen",
		ConsumerPhone:    &phone,
		Status:           domain.StatusNew,
		AssignmentStatus: string(domain.AssignmentPendingAcceptance),
		AssignedTo:       &sellerID,
		AssignedAt:       &assignedAt,
		CreatedAt:        assignedAt.Add(-time.Hour),
		UpdatedAt:        assignedAt,
	}

	resp := transport.ToLeadResponse(lead)

	assert.Equal(t, lead.ID, resp.ID)
	require.NotNil(t, resp.FacilityID)
	assert.Equal(t, facilityID, *resp.FacilityID)
	assert.Equal(t, "Jansen", resp.ConsumerName)
	require.NotNil(t, resp.ConsumerPhone)
	assert.Equal(t, phone, *resp.ConsumerPhone)
	assert.Equal(t, string(domain.AssignmentPendingAcceptance), resp.AssignmentStatus)
	require.NotNil(t, resp.AssignedTo)
	assert.Equal(t, sellerID, *resp.AssignedTo)
	assert.Equal(t, "none", resp.EscalationStage)
	assert.Nil(t, resp.AcceptanceOutcome)
	assert.Nil(t, resp.DeclineReason)
}

func TestToLeadResponseEscalationStage(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		lead repository.Lead
		want string
	}{
		{"no markers", repository.Lead{}, "none"},
		{"first reminder", repository.Lead{FirstReminderAt: ptrTime(now)}, "first_reminder"},
		{"final reminder", repository.Lead{FirstReminderAt: ptrTime(now), FinalReminderAt: ptrTime(now)}, "final_reminder"},
		{"timed out", repository.Lead{TimeoutNotifiedAt: ptrTime(now)}, "timed_out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transport.ToLeadResponse(tt.lead).EscalationStage)
		})
	}
}

func TestToPoolEntryResponses(t *testing.T) {
	facilityID := uuid.New()
	members := []service.PoolMember{
		{
			Entry: repository.PoolEntry{
				ID:           uuid.New(),
				FacilityID:   facilityID,
				Enabled:      true,
				SortPosition: 0,
			},
			Seller: repository.User{
				ID:            uuid.New(),
				Name:          "Anna",
				Email:         "anna@example.com",
				IsActive:      true,
				AcceptedCount: 4,
				DeclinedCount: 1,
			},
		},
		{
			Entry: repository.PoolEntry{
				ID:           uuid.New(),
				FacilityID:   facilityID,
				Enabled:      false,
				SortPosition: 1,
			},
			Seller: repository.User{
				ID:            uuid.New(),
				Name:          "Bram",
				Email:         "bram@example.com",
				IsActive:      true,
				TimedOutCount: 2,
			},
		},
	}

	out := transport.ToPoolEntryResponses(members)

	require.Len(t, out, 2)
	assert.Equal(t, members[0].Entry.ID, out[0].ID)
	assert.Equal(t, facilityID, out[0].FacilityID)
	assert.True(t, out[0].Enabled)
	assert.Equal(t, "Anna", out[0].Seller.Name)
	assert.Equal(t, 4, out[0].Seller.AcceptedCount)
	assert.Equal(t, 1, out[0].Seller.DeclinedCount)
	assert.False(t, out[1].Enabled)
	assert.Equal(t, 1, out[1].SortPosition)
	assert.Equal(t, 2, out[1].Seller.TimedOutCount)
}

func TestToAuditEntryResponses(t *testing.T) {
	leadID := uuid.New()
	from := uuid.New()
	to := uuid.New()
	reason := "price too high"
	entries := []repository.AuditEntry{
		{
			ID:           uuid.New(),
			LeadID:       leadID,
			Action:       repository.AuditActionReassigned,
			FromSellerID: &from,
			ToSellerID:   &to,
			CreatedAt:    time.Now(),
		},
		{
			ID:        uuid.New(),
			LeadID:    leadID,
			Action:    repository.AuditActionDeclined,
			ActorID:   &from,
			Detail:    &reason,
			CreatedAt: time.Now().Add(-time.Second),
		},
	}

	out := transport.ToAuditEntryResponses(entries)

	require.Len(t, out, 2)
	assert.Equal(t, repository.AuditActionReassigned, out[0].Action)
	require.NotNil(t, out[0].FromSellerID)
	assert.Equal(t, from, *out[0].FromSellerID)
	require.NotNil(t, out[0].ToSellerID)
	assert.Equal(t, to, *out[0].ToSellerID)
	assert.Equal(t, repository.AuditActionDeclined, out[1].Action)
	require.NotNil(t, out[1].Detail)
	assert.Equal(t, reason, *out[1].Detail)

	assert.Empty(t, transport.ToAuditEntryResponses(nil))
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit action titles. These are the exact strings stored with each entry.
const (
	AuditActionAssigned    = "Lead assigned"
	AuditActionAccepted    = "Lead accepted"
	AuditActionDeclined    = "Lead declined"
	AuditActionReassigned  = "Lead reassigned"
	AuditActionAutoDecline = "Lead auto-declined due to timeout"
)

// AuditEntry is an immutable record of an assignment-affecting event.
// Entries are append-only and never mutated after insertion.
type AuditEntry struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	FacilityID   *uuid.UUID
	Action       string
	ActorID      *uuid.UUID
	FromSellerID *uuid.UUID
	ToSellerID   *uuid.UUID
	Detail       *string
	CreatedAt    time.Time
}

// AppendAuditParams describes one audit entry to append.
type AppendAuditParams struct {
	LeadID       uuid.UUID
	FacilityID   *uuid.UUID
	Action       string
	ActorID      *uuid.UUID
	FromSellerID *uuid.UUID
	ToSellerID   *uuid.UUID
	Detail       *string
}

const auditSelectCols = `
	id, lead_id, facility_id, action, actor_id, from_seller_id, to_seller_id, detail, created_at`

func (r *Repository) AppendAudit(ctx context.Context, params AppendAuditParams) (AuditEntry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO assignment_audit_log (
			lead_id, facility_id, action, actor_id, from_seller_id, to_seller_id, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING`+auditSelectCols+`
	`, params.LeadID, params.FacilityID, params.Action, params.ActorID, params.FromSellerID, params.ToSellerID, params.Detail)

	var entry AuditEntry
	err := row.Scan(
		&entry.ID, &entry.LeadID, &entry.FacilityID, &entry.Action,
		&entry.ActorID, &entry.FromSellerID, &entry.ToSellerID, &entry.Detail, &entry.CreatedAt,
	)
	return entry, err
}

// ListAuditByLead returns the lead's audit trail, newest first.
func (r *Repository) ListAuditByLead(ctx context.Context, leadID uuid.UUID) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+auditSelectCols+`
		FROM assignment_audit_log
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.FacilityID, &entry.Action,
			&entry.ActorID, &entry.FromSellerID, &entry.ToSellerID, &entry.Detail, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

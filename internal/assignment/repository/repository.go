// Package repository provides Postgres persistence for the assignment
// bounded context: leads' assignment fields, seller pool entries, seller
// counters and the append-only assignment audit log.
//
// Every state transition here is a single conditional UPDATE keyed on the
// expected current assignment status (and assignee or marker where
// relevant), so that concurrent callers and the acceptance monitor cannot
// both win the same acceptance cycle.
package repository

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/internal/assignment/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("lead not found")
	ErrEntryNotFound = errors.New("pool entry not found")
	ErrUserNotFound  = errors.New("user not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead carries the assignment-relevant subset of a lead.
type Lead struct {
	ID                uuid.UUID
	FacilityID        *uuid.UUID
	ConsumerName      string
	ConsumerPhone     *string
	ConsumerEmail     *string
	Source            *string
	Status            string
	AssignmentStatus  string
	AssignedTo        *uuid.UUID
	AssignedAt        *time.Time
	AcceptanceOutcome *string
	AcceptedAt        *time.Time
	DeclinedAt        *time.Time
	DeclineReason     *string
	FirstReminderAt   *time.Time
	FinalReminderAt   *time.Time
	TimeoutNotifiedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Markers bundles the lead's one-shot escalation timestamps.
func (l Lead) Markers() domain.Markers {
	return domain.Markers{
		FirstReminderAt:   l.FirstReminderAt,
		FinalReminderAt:   l.FinalReminderAt,
		TimeoutNotifiedAt: l.TimeoutNotifiedAt,
	}
}

const leadSelectCols = `
	id, facility_id, consumer_name, consumer_phone, consumer_email, source,
	status, assignment_status, assigned_to, assigned_at,
	acceptance_outcome, accepted_at, declined_at, decline_reason,
	first_reminder_at, final_reminder_at, timeout_notified_at,
	created_at, updated_at`

type leadRowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s leadRowScanner) (Lead, error) {
	var lead Lead
	err := s.Scan(
		&lead.ID, &lead.FacilityID, &lead.ConsumerName, &lead.ConsumerPhone, &lead.ConsumerEmail, &lead.Source,
		&lead.Status, &lead.AssignmentStatus, &lead.AssignedTo, &lead.AssignedAt,
		&lead.AcceptanceOutcome, &lead.AcceptedAt, &lead.DeclinedAt, &lead.DeclineReason,
		&lead.FirstReminderAt, &lead.FinalReminderAt, &lead.TimeoutNotifiedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+leadSelectCols+`
		FROM leads WHERE id = $1
	`, id)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ListPendingAcceptance returns leads currently awaiting acceptance, with a
// non-null assignee and assignment timestamp, oldest assignment first. When
// assigneeID is non-nil the result is limited to that seller's leads.
func (r *Repository) ListPendingAcceptance(ctx context.Context, assigneeID *uuid.UUID) ([]Lead, error) {
	query := `
		SELECT` + leadSelectCols + `
		FROM leads
		WHERE assignment_status = 'pending_acceptance'
		  AND assigned_to IS NOT NULL
		  AND assigned_at IS NOT NULL`
	args := []any{}
	if assigneeID != nil {
		query += ` AND assigned_to = $1`
		args = append(args, *assigneeID)
	}
	query += ` ORDER BY assigned_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// LastAssignedSellerID returns the assignee of the facility's most recently
// created lead that currently has one, or nil when the facility has no
// assigned leads. Rotation is derived from this history rather than from a
// mutable pointer, so it survives restarts and pool membership changes.
func (r *Repository) LastAssignedSellerID(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	var sellerID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT assigned_to
		FROM leads
		WHERE facility_id = $1 AND assigned_to IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, facilityID).Scan(&sellerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sellerID, nil
}

// MarkAssigned moves the lead into pending acceptance for the given seller
// and resets the acceptance cycle: outcome pending, all escalation markers
// and previous accept/decline fields cleared.
func (r *Repository) MarkAssigned(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			assignment_status = 'pending_acceptance',
			assigned_to = $2,
			assigned_at = $3,
			acceptance_outcome = 'pending',
			accepted_at = NULL,
			declined_at = NULL,
			decline_reason = NULL,
			first_reminder_at = NULL,
			final_reminder_at = NULL,
			timeout_notified_at = NULL,
			updated_at = $3
		WHERE id = $1
		RETURNING`+leadSelectCols+`
	`, leadID, sellerID, at)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// MarkAccepted completes the acceptance cycle for the expected assignee.
// The WHERE clause pins the pending status and the assignee; zero rows
// affected means a concurrent transition won and the caller must treat the
// accept as a benign conflict. The business status is left alone: the lead
// resumes whatever working status it carried into the cycle.
func (r *Repository) MarkAccepted(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (Lead, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			assignment_status = 'accepted',
			acceptance_outcome = 'accepted',
			accepted_at = $3,
			first_reminder_at = NULL,
			final_reminder_at = NULL,
			timeout_notified_at = NULL,
			updated_at = $3
		WHERE id = $1
		  AND assignment_status = 'pending_acceptance'
		  AND assigned_to = $2
		RETURNING`+leadSelectCols+`
	`, leadID, sellerID, at)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, err
	}
	return lead, true, nil
}

// MarkDeclined records the assignee's decline. The lead stays pending so the
// caller can immediately reassign or release it; it must never be left in
// this intermediate state.
func (r *Repository) MarkDeclined(ctx context.Context, leadID, sellerID uuid.UUID, reason *string, at time.Time) (Lead, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			acceptance_outcome = 'declined',
			declined_at = $4,
			decline_reason = $3,
			first_reminder_at = NULL,
			final_reminder_at = NULL,
			timeout_notified_at = NULL,
			updated_at = $4
		WHERE id = $1
		  AND assignment_status = 'pending_acceptance'
		  AND assigned_to = $2
		RETURNING`+leadSelectCols+`
	`, leadID, sellerID, reason, at)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, err
	}
	return lead, true, nil
}

// ReleaseToPool reverts the lead to the unassigned pool with a clean slate.
func (r *Repository) ReleaseToPool(ctx context.Context, leadID uuid.UUID, at time.Time) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			assignment_status = 'unassigned',
			status = 'new',
			assigned_to = NULL,
			assigned_at = NULL,
			acceptance_outcome = NULL,
			accepted_at = NULL,
			declined_at = NULL,
			decline_reason = NULL,
			first_reminder_at = NULL,
			final_reminder_at = NULL,
			timeout_notified_at = NULL,
			updated_at = $2
		WHERE id = $1
		RETURNING`+leadSelectCols+`
	`, leadID, at)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// MarkFirstReminderSent sets the 6h reminder marker once per cycle.
// Returns false when the lead already left pending acceptance or the marker
// was already set.
func (r *Repository) MarkFirstReminderSent(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET first_reminder_at = $2, updated_at = $2
		WHERE id = $1
		  AND assignment_status = 'pending_acceptance'
		  AND first_reminder_at IS NULL
	`, leadID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFinalReminderSent sets the 11h reminder marker once per cycle.
func (r *Repository) MarkFinalReminderSent(ctx context.Context, leadID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET final_reminder_at = $2, updated_at = $2
		WHERE id = $1
		  AND assignment_status = 'pending_acceptance'
		  AND final_reminder_at IS NULL
	`, leadID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimTimeout atomically claims the timeout escalation for the expected
// assignee. Exactly one caller can win this per acceptance cycle, which is
// what makes the manager notification and the counters fire once.
func (r *Repository) ClaimTimeout(ctx context.Context, leadID, sellerID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET timeout_notified_at = $3, updated_at = $3
		WHERE id = $1
		  AND assignment_status = 'pending_acceptance'
		  AND assigned_to = $2
		  AND timeout_notified_at IS NULL
	`, leadID, sellerID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

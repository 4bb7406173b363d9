package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/assignment/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a seller or facility manager with the assignment counters kept on
// the user record for reporting.
type User struct {
	ID              uuid.UUID
	FacilityID      *uuid.UUID
	Name            string
	Email           string
	Role            string
	IsActive        bool
	AcceptedCount   int
	DeclinedCount   int
	ReassignedCount int
	TimedOutCount   int
	CreatedAt       time.Time
}

const (
	RoleSeller  = "seller"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

const userSelectCols = `
	id, facility_id, name, email, role, is_active,
	accepted_count, declined_count, reassigned_count, timed_out_count, created_at`

func scanUser(s leadRowScanner) (User, error) {
	var user User
	err := s.Scan(
		&user.ID, &user.FacilityID, &user.Name, &user.Email, &user.Role, &user.IsActive,
		&user.AcceptedCount, &user.DeclinedCount, &user.ReassignedCount, &user.TimedOutCount,
		&user.CreatedAt,
	)
	return user, err
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+userSelectCols+`
		FROM users WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// GetFacilityManager returns the facility's active manager, or nil when the
// facility has none. A missing manager is expected and handled by callers.
func (r *Repository) GetFacilityManager(ctx context.Context, facilityID uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+userSelectCols+`
		FROM users
		WHERE facility_id = $1 AND role = 'manager' AND is_active = true
		ORDER BY created_at ASC
		LIMIT 1
	`, facilityID)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// counterColumns whitelists the counter names accepted by IncrementCounter.
var counterColumns = map[string]string{
	domain.CounterAccepted:   "accepted_count",
	domain.CounterDeclined:   "declined_count",
	domain.CounterReassigned: "reassigned_count",
	domain.CounterTimedOut:   "timed_out_count",
}

// IncrementCounter bumps one of the seller's assignment counters.
// Counters are monotonic; there is no decrement.
func (r *Repository) IncrementCounter(ctx context.Context, sellerID uuid.UUID, counter string) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown seller counter %q", counter)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET `+column+` = `+column+` + 1 WHERE id = $1`,
		sellerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

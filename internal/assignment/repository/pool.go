package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PoolEntry is a (facility, seller) membership record controlling rotation
// eligibility and order. Entries are never deleted while referenced, only
// disabled.
type PoolEntry struct {
	ID           uuid.UUID
	FacilityID   uuid.UUID
	SellerID     uuid.UUID
	Enabled      bool
	SortPosition int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const poolSelectCols = `
	id, facility_id, seller_id, enabled, sort_position, created_at, updated_at`

func scanPoolEntry(s leadRowScanner) (PoolEntry, error) {
	var entry PoolEntry
	err := s.Scan(
		&entry.ID, &entry.FacilityID, &entry.SellerID,
		&entry.Enabled, &entry.SortPosition, &entry.CreatedAt, &entry.UpdatedAt,
	)
	return entry, err
}

// ListEligible returns the facility's enabled pool entries ordered ascending
// by sort position. An empty result is a valid state, not an error.
func (r *Repository) ListEligible(ctx context.Context, facilityID uuid.UUID) ([]PoolEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+poolSelectCols+`
		FROM seller_pool_entries
		WHERE facility_id = $1 AND enabled = true
		ORDER BY sort_position ASC
	`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoolEntries(rows)
}

// ListByFacility returns all pool entries for a facility, including disabled
// ones, ordered by sort position. Used by the manager UI.
func (r *Repository) ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]PoolEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+poolSelectCols+`
		FROM seller_pool_entries
		WHERE facility_id = $1
		ORDER BY sort_position ASC
	`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoolEntries(rows)
}

func (r *Repository) GetPoolEntry(ctx context.Context, id uuid.UUID) (PoolEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+poolSelectCols+`
		FROM seller_pool_entries WHERE id = $1
	`, id)

	entry, err := scanPoolEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PoolEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// SetEntryEnabled flips rotation eligibility for one entry. The facility is
// pinned in the WHERE clause so an entry cannot be toggled through another
// facility's URL; a mismatch reads as ErrEntryNotFound.
func (r *Repository) SetEntryEnabled(ctx context.Context, facilityID, id uuid.UUID, enabled bool, at time.Time) (PoolEntry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE seller_pool_entries
		SET enabled = $3, updated_at = $4
		WHERE id = $1 AND facility_id = $2
		RETURNING`+poolSelectCols+`
	`, id, facilityID, enabled, at)

	entry, err := scanPoolEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PoolEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// PositionUpdate is one entry's new sort position within a reorder.
type PositionUpdate struct {
	EntryID      uuid.UUID
	SortPosition int
}

// ReorderEntries applies a set of position updates atomically. All entries
// must belong to the given facility; a manual drag-reorder swaps two
// neighbours, but any consistent set is accepted.
func (r *Repository) ReorderEntries(ctx context.Context, facilityID uuid.UUID, updates []PositionUpdate, at time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, update := range updates {
		tag, err := tx.Exec(ctx, `
			UPDATE seller_pool_entries
			SET sort_position = $3, updated_at = $4
			WHERE id = $1 AND facility_id = $2
		`, update.EntryID, facilityID, update.SortPosition, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("reorder entry %s: %w", update.EntryID, ErrEntryNotFound)
		}
	}

	return tx.Commit(ctx)
}

func collectPoolEntries(rows pgx.Rows) ([]PoolEntry, error) {
	entries := make([]PoolEntry, 0)
	for rows.Next() {
		entry, err := scanPoolEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

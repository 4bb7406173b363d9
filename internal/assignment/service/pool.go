package service

import (
	"context"
	"errors"

	"leadflow_backend/internal/assignment/repository"

	"github.com/google/uuid"
)

// PoolMember pairs a rotation entry with the seller behind it.
type PoolMember struct {
	Entry  repository.PoolEntry
	Seller repository.User
}

// ListPool returns the facility's full rotation, disabled entries included,
// ordered by position, with each entry's seller and response counters.
func (s *Service) ListPool(ctx context.Context, facilityID uuid.UUID) ([]PoolMember, error) {
	entries, err := s.store.ListByFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	members := make([]PoolMember, 0, len(entries))
	for _, entry := range entries {
		seller, err := s.store.GetUser(ctx, entry.SellerID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				// Entry for a removed user: skip rather than fail the listing.
				continue
			}
			return nil, err
		}
		members = append(members, PoolMember{Entry: entry, Seller: seller})
	}
	return members, nil
}

// SetPoolEntryEnabled toggles a seller's rotation eligibility. Disabling does
// not touch leads already pending with the seller; it only removes them from
// future selection. The entry must belong to the given facility.
func (s *Service) SetPoolEntryEnabled(ctx context.Context, facilityID, entryID uuid.UUID, enabled bool) (repository.PoolEntry, error) {
	entry, err := s.store.SetEntryEnabled(ctx, facilityID, entryID, enabled, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return repository.PoolEntry{}, ErrEntryNotFound
		}
		return repository.PoolEntry{}, err
	}
	return entry, nil
}

// ReorderPool applies new sort positions to the facility's rotation entries.
// Every referenced entry must belong to the facility, and no position may
// appear twice: positions are the rotation's ordering key, so a tie would
// make the selection order nondeterministic.
func (s *Service) ReorderPool(ctx context.Context, facilityID uuid.UUID, updates []repository.PositionUpdate) ([]PoolMember, error) {
	seen := make(map[int]struct{}, len(updates))
	for _, update := range updates {
		if _, dup := seen[update.SortPosition]; dup {
			return nil, ErrDuplicatePosition
		}
		seen[update.SortPosition] = struct{}{}
	}

	if err := s.store.ReorderEntries(ctx, facilityID, updates, s.now()); err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return s.ListPool(ctx, facilityID)
}

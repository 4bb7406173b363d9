// Package rotation implements the fairness-preserving round robin that picks
// the next eligible seller for a facility.
//
// Selection is a pure function of the facility's ordered eligible pool plus
// the most recent assignment on record. There is no mutable rotation pointer:
// recomputing from history keeps the rotation consistent across restarts and
// pool membership changes. The fairness window is one full pass through the
// current eligible set; a seller disabled and re-enabled mid-pass may be
// skipped or revisited depending on where the history points. That is an
// accepted trade-off of history-derived rotation, not a defect.
package rotation

import (
	"context"

	"leadflow_backend/internal/assignment/repository"

	"github.com/google/uuid"
)

// PoolReader is the slice of storage the selector needs.
type PoolReader interface {
	// ListEligible returns the facility's enabled pool entries ordered
	// ascending by sort position.
	ListEligible(ctx context.Context, facilityID uuid.UUID) ([]repository.PoolEntry, error)
	// LastAssignedSellerID returns the assignee of the facility's most
	// recently created lead with one, or nil when none exists.
	LastAssignedSellerID(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error)
}

// Selector computes the next seller in rotation for a facility.
type Selector struct {
	store PoolReader
}

func New(store PoolReader) *Selector {
	return &Selector{store: store}
}

// SelectNext returns the next seller in rotation, or nil when the facility
// has no eligible sellers. A previously assigned seller who has since left
// the eligible set fails open to the head of the rotation.
func (s *Selector) SelectNext(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	return s.selectNext(ctx, facilityID, nil)
}

// SelectNextExcluding is SelectNext with one seller removed from the
// candidate set, used when reassigning after that seller declined or timed
// out. With two eligible sellers the other one is always chosen; with a
// single eligible seller equal to the exclusion the result is nil.
func (s *Selector) SelectNextExcluding(ctx context.Context, facilityID, excludeSellerID uuid.UUID) (*uuid.UUID, error) {
	return s.selectNext(ctx, facilityID, &excludeSellerID)
}

func (s *Selector) selectNext(ctx context.Context, facilityID uuid.UUID, exclude *uuid.UUID) (*uuid.UUID, error) {
	entries, err := s.store.ListEligible(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	candidates := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if exclude != nil && entry.SellerID == *exclude {
			continue
		}
		candidates = append(candidates, entry.SellerID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	previous, err := s.store.LastAssignedSellerID(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	next := nextAfter(candidates, previous)
	return &next, nil
}

// nextAfter picks the candidate following previous in rotation order.
// An unknown or missing previous seller starts the rotation at the head.
func nextAfter(candidates []uuid.UUID, previous *uuid.UUID) uuid.UUID {
	if previous == nil {
		return candidates[0]
	}
	for i, id := range candidates {
		if id == *previous {
			return candidates[(i+1)%len(candidates)]
		}
	}
	return candidates[0]
}

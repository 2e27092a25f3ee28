package orghier

import (
	"context"
	"fmt"
)

// Store is the authoritative view of the department forest: a persistent
// repository plus the in-memory arena a reconciliation run works against.
type Store struct {
	repo   Repository
	forest *Forest
}

// NewStore constructs a Store around a repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, forest: NewForest(nil)}
}

// Load rebuilds the arena from persistent state. Called once at the start
// of each reconciliation run.
func (s *Store) Load(ctx context.Context) error {
	depts, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("orghier: load forest: %w", err)
	}
	s.forest = NewForest(depts)
	return nil
}

// Forest exposes the in-memory arena for chain and subtree queries.
func (s *Store) Forest() *Forest {
	return s.forest
}

// Lookup returns the current department for an external id.
func (s *Store) Lookup(externalID string) (Department, bool) {
	return s.forest.Lookup(externalID)
}

// Upsert creates or updates a department keyed by external id, in both the
// repository and the arena. parentExternalID empty means root. Returns
// ErrParentUnknown without touching anything when the parent has no node
// yet; callers defer such rows to a later pass.
func (s *Store) Upsert(ctx context.Context, externalID, name, parentExternalID string, boundary BoundaryType) (Department, bool, error) {
	var parentID *int64
	if parentExternalID != "" {
		parent, ok := s.forest.Lookup(parentExternalID)
		if !ok {
			return Department{}, false, ErrParentUnknown
		}
		parentID = &parent.ID
	}

	existing, ok := s.forest.Lookup(externalID)
	if !ok {
		dept := Department{ExternalID: externalID, Name: name, ParentID: parentID, Boundary: boundary}
		created, err := s.repo.Insert(ctx, dept)
		if err != nil {
			return Department{}, false, err
		}
		if err := s.forest.Add(created); err != nil {
			return Department{}, false, err
		}
		return created, true, nil
	}

	if existing.Name == name && existing.Boundary == boundary && parentEqual(existing.ParentID, parentID) {
		return existing, false, nil
	}

	updated := existing
	updated.Name = name
	updated.Boundary = boundary
	updated.ParentID = parentID
	if err := s.repo.Update(ctx, updated); err != nil {
		return Department{}, false, err
	}
	if err := s.forest.Update(updated); err != nil {
		return Department{}, false, err
	}
	return updated, false, nil
}

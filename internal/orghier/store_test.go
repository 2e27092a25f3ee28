package orghier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainrec/trainrec/internal/shared"
)

type memoryDeptRepo struct {
	depts   map[string]Department
	nextID  int64
	updates int
}

func newMemoryDeptRepo() *memoryDeptRepo {
	return &memoryDeptRepo{depts: make(map[string]Department)}
}

func (r *memoryDeptRepo) Insert(ctx context.Context, dept Department) (Department, error) {
	r.nextID++
	dept.ID = r.nextID
	r.depts[dept.ExternalID] = dept
	return dept, nil
}

func (r *memoryDeptRepo) Update(ctx context.Context, dept Department) error {
	if _, ok := r.depts[dept.ExternalID]; !ok {
		return shared.ErrNotFound
	}
	r.depts[dept.ExternalID] = dept
	r.updates++
	return nil
}

func (r *memoryDeptRepo) GetByExternalID(ctx context.Context, externalID string) (Department, error) {
	d, ok := r.depts[externalID]
	if !ok {
		return Department{}, shared.ErrNotFound
	}
	return d, nil
}

func (r *memoryDeptRepo) ListAll(ctx context.Context) ([]Department, error) {
	out := make([]Department, 0, len(r.depts))
	for _, d := range r.depts {
		out = append(out, d)
	}
	return out, nil
}

func (r *memoryDeptRepo) AncestorChain(ctx context.Context, id int64) ([]Department, error) {
	return nil, shared.ErrNotFound
}

func TestStoreUpsertCreate(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMemoryDeptRepo())
	require.NoError(t, store.Load(ctx))

	campus, created, err := store.Upsert(ctx, "1", "Campus A", "", BoundaryCampus)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, campus.ID)

	child, created, err := store.Upsert(ctx, "2", "Dept B", "1", BoundaryUnit)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, child.ParentID)
	require.Equal(t, campus.ID, *child.ParentID)
}

func TestStoreUpsertUnknownParent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryDeptRepo()
	store := NewStore(repo)
	require.NoError(t, store.Load(ctx))

	_, _, err := store.Upsert(ctx, "2", "Dept B", "missing", BoundaryUnit)
	require.ErrorIs(t, err, ErrParentUnknown)
	require.Empty(t, repo.depts, "no write may happen before the parent resolves")
}

func TestStoreUpsertUnchangedSkipsWrite(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryDeptRepo()
	store := NewStore(repo)
	require.NoError(t, store.Load(ctx))

	_, _, err := store.Upsert(ctx, "1", "Campus A", "", BoundaryCampus)
	require.NoError(t, err)

	again, created, err := store.Upsert(ctx, "1", "Campus A", "", BoundaryCampus)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Campus A", again.Name)
	require.Zero(t, repo.updates)
}

func TestStoreUpsertUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryDeptRepo()
	store := NewStore(repo)
	require.NoError(t, store.Load(ctx))

	_, _, err := store.Upsert(ctx, "1", "Campus A", "", BoundaryCampus)
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, "2", "Dept B", "1", BoundaryUnit)
	require.NoError(t, err)

	renamed, created, err := store.Upsert(ctx, "2", "Dept B2", "1", BoundaryUnit)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Dept B2", renamed.Name)
	require.Equal(t, 1, repo.updates)

	got, ok := store.Lookup("2")
	require.True(t, ok)
	require.Equal(t, "Dept B2", got.Name)
}

func TestStoreLoadRebuildsForest(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryDeptRepo()
	store := NewStore(repo)
	require.NoError(t, store.Load(ctx))

	_, _, err := store.Upsert(ctx, "1", "Campus A", "", BoundaryCampus)
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, "2", "Dept B", "1", BoundaryUnit)
	require.NoError(t, err)

	fresh := NewStore(repo)
	require.NoError(t, fresh.Load(ctx))
	require.Equal(t, 2, fresh.Forest().Len())

	admin, err := fresh.Forest().ResolveAdministrative("2")
	require.NoError(t, err)
	require.Equal(t, "1", admin.ExternalID)
}

package orghier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func dept(id int64, ext, name string, parentID *int64, boundary BoundaryType) Department {
	return Department{ID: id, ExternalID: ext, Name: name, ParentID: parentID, Boundary: boundary}
}

func ptr(v int64) *int64 { return &v }

// campus "1" <- unit "2" <- plain "3"; plain root "9"
func testForest(t *testing.T) *Forest {
	t.Helper()
	return NewForest([]Department{
		dept(1, "1", "Campus A", nil, BoundaryCampus),
		dept(2, "2", "Dept B", ptr(1), BoundaryUnit),
		dept(3, "3", "Office C", ptr(2), BoundaryOther),
		dept(9, "9", "Standalone", nil, BoundaryOther),
	})
}

func TestResolveAdministrative(t *testing.T) {
	f := testForest(t)

	admin, err := f.ResolveAdministrative("3")
	require.NoError(t, err)
	require.Equal(t, "1", admin.ExternalID)

	admin, err = f.ResolveAdministrative("2")
	require.NoError(t, err)
	require.Equal(t, "1", admin.ExternalID)

	admin, err = f.ResolveAdministrative("1")
	require.NoError(t, err)
	require.Equal(t, "1", admin.ExternalID)

	// A root with no campus tag is its own administrative department.
	admin, err = f.ResolveAdministrative("9")
	require.NoError(t, err)
	require.Equal(t, "9", admin.ExternalID)
}

func TestResolveAdministrativeIdempotent(t *testing.T) {
	f := testForest(t)
	for _, ext := range []string{"1", "2", "3", "9"} {
		first, err := f.ResolveAdministrative(ext)
		require.NoError(t, err)
		second, err := f.ResolveAdministrative(first.ExternalID)
		require.NoError(t, err)
		require.Equal(t, first.ExternalID, second.ExternalID)
	}
}

func TestResolveAdministrativeMemoizes(t *testing.T) {
	f := testForest(t)
	_, err := f.ResolveAdministrative("3")
	require.NoError(t, err)

	// Every node visited on the walk memoizes to the same target.
	for _, ext := range []string{"1", "2", "3"} {
		idx := f.byExt[ext]
		target, ok := f.memo[idx]
		require.True(t, ok, "expected memo entry for %q", ext)
		require.Equal(t, f.byExt["1"], target)
	}
}

func TestResolveAdministrativeUnknown(t *testing.T) {
	f := testForest(t)
	_, err := f.ResolveAdministrative("nope")
	require.ErrorIs(t, err, ErrDepartmentUnknown)
}

func TestUpdateInvalidatesSubtreeMemo(t *testing.T) {
	f := testForest(t)
	_, err := f.ResolveAdministrative("3")
	require.NoError(t, err)

	// Promote "2" to campus: resolutions below it must change.
	moved := dept(2, "2", "Dept B", ptr(1), BoundaryCampus)
	require.NoError(t, f.Update(moved))

	admin, err := f.ResolveAdministrative("3")
	require.NoError(t, err)
	require.Equal(t, "2", admin.ExternalID)

	admin, err = f.ResolveAdministrative("2")
	require.NoError(t, err)
	require.Equal(t, "2", admin.ExternalID)
}

func TestUpdateReparent(t *testing.T) {
	f := testForest(t)
	_, err := f.ResolveAdministrative("3")
	require.NoError(t, err)

	// Move "3" under the standalone root.
	require.NoError(t, f.Update(dept(3, "3", "Office C", ptr(9), BoundaryOther)))

	admin, err := f.ResolveAdministrative("3")
	require.NoError(t, err)
	require.Equal(t, "9", admin.ExternalID)

	sub, err := f.Subtree("9")
	require.NoError(t, err)
	require.Len(t, sub, 2)

	sub, err = f.Subtree("2")
	require.NoError(t, err)
	require.Len(t, sub, 1)
}

func TestUpdateUnknownParent(t *testing.T) {
	f := testForest(t)
	err := f.Update(dept(3, "3", "Office C", ptr(404), BoundaryOther))
	require.ErrorIs(t, err, ErrParentUnknown)
}

func TestAddUnknownParent(t *testing.T) {
	f := testForest(t)
	err := f.Add(dept(5, "5", "Orphan", ptr(404), BoundaryOther))
	require.ErrorIs(t, err, ErrParentUnknown)
	require.Equal(t, 4, f.Len())
}

func TestAncestorChain(t *testing.T) {
	f := testForest(t)

	chain, err := f.AncestorChain("3")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Equal(t, "3", chain[0].ExternalID)
	require.Equal(t, "2", chain[1].ExternalID)
	require.Equal(t, "1", chain[2].ExternalID)

	chain, err = f.AncestorChain("1")
	require.NoError(t, err)
	require.Len(t, chain, 1)
}

func TestSubtree(t *testing.T) {
	f := testForest(t)

	sub, err := f.Subtree("1")
	require.NoError(t, err)
	exts := make([]string, len(sub))
	for i, d := range sub {
		exts[i] = d.ExternalID
	}
	require.ElementsMatch(t, []string{"1", "2", "3"}, exts)
}

func TestResolveAdministrativeCycle(t *testing.T) {
	// A parent cycle cannot come out of Add or Update, but a corrupted
	// snapshot can carry one; the walk must fail rather than spin.
	f := NewForest([]Department{
		dept(1, "a", "A", ptr(2), BoundaryOther),
		dept(2, "b", "B", ptr(1), BoundaryOther),
	})
	_, err := f.ResolveAdministrative("a")
	require.ErrorIs(t, err, ErrCycle)

	_, err = f.AncestorChain("b")
	require.ErrorIs(t, err, ErrCycle)
}

func TestParseBoundary(t *testing.T) {
	require.Equal(t, BoundaryCampus, ParseBoundary("1"))
	require.Equal(t, BoundaryCampus, ParseBoundary("campus"))
	require.Equal(t, BoundaryUnit, ParseBoundary("2"))
	require.Equal(t, BoundaryOther, ParseBoundary(""))
	require.Equal(t, BoundaryOther, ParseBoundary("99"))

	require.True(t, BoundaryCampus.Administrative())
	require.False(t, BoundaryUnit.Administrative())
	require.False(t, BoundaryOther.Administrative())
}

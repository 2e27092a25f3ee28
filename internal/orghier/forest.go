package orghier

import (
	"errors"
	"fmt"
)

var (
	// ErrDepartmentUnknown indicates the external id has no node in the forest.
	ErrDepartmentUnknown = errors.New("orghier: department unknown")
	// ErrParentUnknown indicates a referenced parent has no node yet.
	ErrParentUnknown = errors.New("orghier: parent unknown")
	// ErrCycle indicates the parent graph is not a forest. The feed is
	// treated as authoritative, so this is a fatal input error.
	ErrCycle = errors.New("orghier: parent cycle detected")
)

const noParent = int32(-1)

type node struct {
	dept   Department
	parent int32
}

// Forest is an arena of department nodes indexed by external id. Parents are
// stored as arena indices, never as node pointers, so reparenting is a map
// update and administrative resolution memoizes index to index.
type Forest struct {
	nodes    []node
	byExt    map[string]int32
	byID     map[int64]int32
	children map[int32][]int32
	memo     map[int32]int32
}

// NewForest builds an arena from existing departments. Rows may arrive in
// any order; parent links are wired in a second pass.
func NewForest(depts []Department) *Forest {
	f := &Forest{
		byExt:    make(map[string]int32, len(depts)),
		byID:     make(map[int64]int32, len(depts)),
		children: make(map[int32][]int32),
		memo:     make(map[int32]int32),
	}
	for _, d := range depts {
		f.add(d)
	}
	for i := range f.nodes {
		pid := f.nodes[i].dept.ParentID
		if pid == nil {
			continue
		}
		if pidx, ok := f.byID[*pid]; ok {
			f.link(int32(i), pidx)
		}
	}
	return f
}

func (f *Forest) add(d Department) int32 {
	idx := int32(len(f.nodes))
	f.nodes = append(f.nodes, node{dept: d, parent: noParent})
	f.byExt[d.ExternalID] = idx
	f.byID[d.ID] = idx
	return idx
}

func (f *Forest) link(idx, parent int32) {
	f.nodes[idx].parent = parent
	f.children[parent] = append(f.children[parent], idx)
}

func (f *Forest) unlink(idx int32) {
	parent := f.nodes[idx].parent
	if parent == noParent {
		return
	}
	siblings := f.children[parent]
	for i, c := range siblings {
		if c == idx {
			f.children[parent] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	f.nodes[idx].parent = noParent
}

// Add inserts a department into the arena, wiring its parent when present.
// Returns ErrParentUnknown when the parent id has no node yet.
func (f *Forest) Add(d Department) error {
	if _, ok := f.byExt[d.ExternalID]; ok {
		return fmt.Errorf("orghier: duplicate node %q", d.ExternalID)
	}
	var pidx = noParent
	if d.ParentID != nil {
		p, ok := f.byID[*d.ParentID]
		if !ok {
			return ErrParentUnknown
		}
		pidx = p
	}
	idx := f.add(d)
	if pidx != noParent {
		f.link(idx, pidx)
	}
	return nil
}

// Lookup returns the department for an external id.
func (f *Forest) Lookup(externalID string) (Department, bool) {
	idx, ok := f.byExt[externalID]
	if !ok {
		return Department{}, false
	}
	return f.nodes[idx].dept, true
}

// LookupByID returns the department for an internal id.
func (f *Forest) LookupByID(id int64) (Department, bool) {
	idx, ok := f.byID[id]
	if !ok {
		return Department{}, false
	}
	return f.nodes[idx].dept, true
}

// Len returns the number of nodes in the arena.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Update rewrites a node's name, boundary and parent link. A boundary or
// parent change invalidates memoized resolutions for the whole subtree:
// every node whose resolution chain passes through it lives there.
func (f *Forest) Update(d Department) error {
	idx, ok := f.byExt[d.ExternalID]
	if !ok {
		return ErrDepartmentUnknown
	}
	old := f.nodes[idx].dept

	parentChanged := !parentEqual(old.ParentID, d.ParentID)
	boundaryChanged := old.Boundary != d.Boundary

	if parentChanged {
		var pidx = noParent
		if d.ParentID != nil {
			p, ok := f.byID[*d.ParentID]
			if !ok {
				return ErrParentUnknown
			}
			pidx = p
		}
		f.unlink(idx)
		if pidx != noParent {
			f.link(idx, pidx)
		}
	}
	f.nodes[idx].dept = d
	if parentChanged || boundaryChanged {
		f.invalidate(idx)
	}
	return nil
}

func parentEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// invalidate drops memoized resolutions for idx and every descendant.
func (f *Forest) invalidate(idx int32) {
	delete(f.memo, idx)
	for _, c := range f.children[idx] {
		f.invalidate(c)
	}
}

// ResolveAdministrative returns the administrative department for the given
// external id: the nearest campus-tagged ancestor, or the forest root when
// none is tagged. A campus-tagged or root department resolves to itself.
// Every node visited on the walk is memoized to the same answer, so a batch
// of N departments over a forest of depth D costs O(N + D), not O(N*D).
func (f *Forest) ResolveAdministrative(externalID string) (Department, error) {
	idx, ok := f.byExt[externalID]
	if !ok {
		return Department{}, ErrDepartmentUnknown
	}

	visited := make([]int32, 0, 8)
	cur := idx
	target := noParent
	for steps := 0; ; steps++ {
		if steps > len(f.nodes) {
			return Department{}, fmt.Errorf("%w: via %q", ErrCycle, externalID)
		}
		if r, ok := f.memo[cur]; ok {
			target = r
			break
		}
		n := f.nodes[cur]
		if n.parent == noParent || n.dept.Boundary.Administrative() {
			target = cur
			break
		}
		visited = append(visited, cur)
		cur = n.parent
	}

	f.memo[target] = target
	for _, v := range visited {
		f.memo[v] = target
	}
	return f.nodes[target].dept, nil
}

// AncestorChain returns the department followed by its ancestors up to and
// including the administrative root.
func (f *Forest) AncestorChain(externalID string) ([]Department, error) {
	idx, ok := f.byExt[externalID]
	if !ok {
		return nil, ErrDepartmentUnknown
	}
	chain := make([]Department, 0, 8)
	cur := idx
	for steps := 0; ; steps++ {
		if steps > len(f.nodes) {
			return nil, fmt.Errorf("%w: via %q", ErrCycle, externalID)
		}
		n := f.nodes[cur]
		chain = append(chain, n.dept)
		if n.parent == noParent || n.dept.Boundary.Administrative() {
			return chain, nil
		}
		cur = n.parent
	}
}

// Subtree returns the department and all transitive descendants.
func (f *Forest) Subtree(externalID string) ([]Department, error) {
	idx, ok := f.byExt[externalID]
	if !ok {
		return nil, ErrDepartmentUnknown
	}
	var out []Department
	var walk func(int32)
	walk = func(i int32) {
		out = append(out, f.nodes[i].dept)
		for _, c := range f.children[i] {
			walk(c)
		}
	}
	walk(idx)
	return out, nil
}

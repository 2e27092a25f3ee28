package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainrec/trainrec/internal/feed"
	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/roster"
	"github.com/trainrec/trainrec/internal/shared"
)

type memoryDepts struct {
	depts  map[string]orghier.Department
	nextID int64
}

func newMemoryDepts() *memoryDepts {
	return &memoryDepts{depts: make(map[string]orghier.Department)}
}

func (r *memoryDepts) Insert(ctx context.Context, dept orghier.Department) (orghier.Department, error) {
	r.nextID++
	dept.ID = r.nextID
	r.depts[dept.ExternalID] = dept
	return dept, nil
}

func (r *memoryDepts) Update(ctx context.Context, dept orghier.Department) error {
	if _, ok := r.depts[dept.ExternalID]; !ok {
		return shared.ErrNotFound
	}
	r.depts[dept.ExternalID] = dept
	return nil
}

func (r *memoryDepts) GetByExternalID(ctx context.Context, externalID string) (orghier.Department, error) {
	d, ok := r.depts[externalID]
	if !ok {
		return orghier.Department{}, shared.ErrNotFound
	}
	return d, nil
}

func (r *memoryDepts) ListAll(ctx context.Context) ([]orghier.Department, error) {
	out := make([]orghier.Department, 0, len(r.depts))
	for _, d := range r.depts {
		out = append(out, d)
	}
	return out, nil
}

func (r *memoryDepts) AncestorChain(ctx context.Context, id int64) ([]orghier.Department, error) {
	return nil, shared.ErrNotFound
}

type memoryUsers struct {
	users  map[string]roster.User
	nextID int64
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]roster.User)}
}

func (r *memoryUsers) GetByExternalID(ctx context.Context, externalID string) (roster.User, error) {
	u, ok := r.users[externalID]
	if !ok {
		return roster.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUsers) GetByID(ctx context.Context, id int64) (roster.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return roster.User{}, shared.ErrNotFound
}

func (r *memoryUsers) Create(ctx context.Context, user roster.User) (roster.User, error) {
	r.nextID++
	user.ID = r.nextID
	r.users[user.ExternalID] = user
	return user, nil
}

func (r *memoryUsers) Update(ctx context.Context, user roster.User) error {
	if _, ok := r.users[user.ExternalID]; !ok {
		return shared.ErrNotFound
	}
	r.users[user.ExternalID] = user
	return nil
}

func (r *memoryUsers) ListByDepartmentIDs(ctx context.Context, departmentIDs []int64) ([]roster.User, error) {
	ids := make(map[int64]bool, len(departmentIDs))
	for _, id := range departmentIDs {
		ids[id] = true
	}
	var out []roster.User
	for _, u := range r.users {
		if u.DepartmentID != nil && ids[*u.DepartmentID] {
			out = append(out, u)
		}
	}
	return out, nil
}

type groupKey struct {
	deptID int64
	role   rbac.Role
}

type memoryGroups struct {
	groups      map[groupKey]rbac.Group
	nextID      int64
	members     map[int64]map[int64]bool
	modelGrants map[int64]map[string][]string
	objGrants   []rbac.ObjectGrant
}

func newMemoryGroups() *memoryGroups {
	return &memoryGroups{
		groups:      make(map[groupKey]rbac.Group),
		members:     make(map[int64]map[int64]bool),
		modelGrants: make(map[int64]map[string][]string),
	}
}

func (r *memoryGroups) GetOrCreateGroup(ctx context.Context, group rbac.Group) (rbac.Group, bool, error) {
	key := groupKey{deptID: group.DepartmentID, role: group.Role}
	if existing, ok := r.groups[key]; ok {
		return existing, false, nil
	}
	r.nextID++
	group.ID = r.nextID
	r.groups[key] = group
	return group, true, nil
}

func (r *memoryGroups) GroupByDepartmentRole(ctx context.Context, departmentID int64, role rbac.Role) (rbac.Group, error) {
	g, ok := r.groups[groupKey{deptID: departmentID, role: role}]
	if !ok {
		return rbac.Group{}, shared.ErrNotFound
	}
	return g, nil
}

func (r *memoryGroups) GroupsForUser(ctx context.Context, userID int64) ([]rbac.Group, error) {
	var out []rbac.Group
	for _, g := range r.groups {
		if r.members[g.ID][userID] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memoryGroups) AddMember(ctx context.Context, groupID, userID int64) error {
	if r.members[groupID] == nil {
		r.members[groupID] = make(map[int64]bool)
	}
	r.members[groupID][userID] = true
	return nil
}

func (r *memoryGroups) RemoveMember(ctx context.Context, groupID, userID int64) error {
	delete(r.members[groupID], userID)
	return nil
}

func (r *memoryGroups) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	for id := range r.members[groupID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memoryGroups) AddModelGrant(ctx context.Context, grant rbac.ModelGrant) error {
	byType := r.modelGrants[grant.GroupID]
	if byType == nil {
		byType = make(map[string][]string)
		r.modelGrants[grant.GroupID] = byType
	}
	for _, a := range byType[grant.ObjectType] {
		if a == grant.Action {
			return nil
		}
	}
	byType[grant.ObjectType] = append(byType[grant.ObjectType], grant.Action)
	return nil
}

func (r *memoryGroups) ModelGrantActions(ctx context.Context, groupID int64, objectType string) ([]string, error) {
	return r.modelGrants[groupID][objectType], nil
}

func (r *memoryGroups) AddObjectGrant(ctx context.Context, grant rbac.ObjectGrant) error {
	r.objGrants = append(r.objGrants, grant)
	return nil
}

func (r *memoryGroups) ObjectGrants(ctx context.Context, objectType string, objectID int64) ([]rbac.ObjectGrant, error) {
	return nil, nil
}

type staticSource struct {
	depts  []feed.DepartmentRow
	roster []feed.RosterRow
}

func (s *staticSource) Departments(ctx context.Context) ([]feed.DepartmentRow, error) {
	return s.depts, nil
}

func (s *staticSource) Roster(ctx context.Context) ([]feed.RosterRow, error) {
	return s.roster, nil
}

type fixture struct {
	depts  *memoryDepts
	users  *memoryUsers
	groups *memoryGroups
	source *staticSource
	engine *Engine
}

func newFixture(source *staticSource) *fixture {
	depts := newMemoryDepts()
	users := newMemoryUsers()
	groups := newMemoryGroups()
	logger := slog.Default()
	return &fixture{
		depts:  depts,
		users:  users,
		groups: groups,
		source: source,
		engine: NewEngine(Config{
			Store:       orghier.NewStore(depts),
			Users:       users,
			Groups:      groups,
			Provisioner: rbac.NewProvisioner(groups, rbac.DefaultMatrix(), logger),
			Source:      source,
			Tables:      roster.NewTables(),
			Logger:      logger,
		}),
	}
}

func (f *fixture) memberGroupID(t *testing.T, deptExt string) int64 {
	t.Helper()
	d, ok := f.depts.depts[deptExt]
	require.True(t, ok, "department %q not persisted", deptExt)
	g, ok := f.groups.groups[groupKey{deptID: d.ID, role: rbac.RoleMember}]
	require.True(t, ok, "member group for %q not provisioned", deptExt)
	return g.ID
}

func baseFeed() *staticSource {
	return &staticSource{
		depts: []feed.DepartmentRow{
			{ExternalID: "1", DisplayName: "Campus A", BoundaryTypeCode: "1", Active: true},
			{ExternalID: "2", DisplayName: "Dept B", ParentExternalID: "1", BoundaryTypeCode: "2", Active: true},
			{ExternalID: "3", DisplayName: "Office C", ParentExternalID: "2", Active: true},
		},
		roster: []feed.RosterRow{
			{ExternalID: "t1", DisplayName: "Alice", DepartmentExternalID: "3",
				BirthDate: "1990-01-02", TenureStatusCode: "1", EducationCode: "1", TitleCode: "3", TeachingTypeCode: "1"},
		},
	}
}

func TestRunFullSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(baseFeed())

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.DepartmentsSeen)
	require.Equal(t, 3, report.DepartmentsCreated)
	require.Equal(t, 6, report.GroupsProvisioned)
	require.Equal(t, 1, report.UsersSeen)
	require.Equal(t, 1, report.UsersCreated)
	require.Empty(t, report.Problems)

	// Canonical group names derive from name, external id and role.
	dept := f.depts.depts["2"]
	admin := f.groups.groups[groupKey{deptID: dept.ID, role: rbac.RoleAdmin}]
	require.Equal(t, "Dept B-2-admin", admin.Name)

	// The new user carries a resolved administrative department and an
	// unusable credential.
	user := f.users.users["t1"]
	require.NotNil(t, user.DepartmentID)
	require.Equal(t, f.depts.depts["3"].ID, *user.DepartmentID)
	require.NotNil(t, user.AdminDepartmentID)
	require.Equal(t, f.depts.depts["1"].ID, *user.AdminDepartmentID)
	require.True(t, strings.HasPrefix(user.PasswordHash, "!"))
	require.Equal(t, "permanent", user.TenureStatus)
	require.Equal(t, "doctorate", user.Education)
	require.Equal(t, "lecturer", user.Title)
	require.NotNil(t, user.BirthDate)

	// Membership cascades from the user's department to the campus root.
	for _, ext := range []string{"3", "2", "1"} {
		gid := f.memberGroupID(t, ext)
		require.True(t, f.groups.members[gid][user.ID], "expected t1 in member group of %q", ext)
	}
}

func TestRunIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(baseFeed())

	_, err := f.engine.Run(ctx)
	require.NoError(t, err)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.DepartmentsCreated)
	require.Equal(t, 0, report.GroupsProvisioned)
	require.Equal(t, 0, report.UsersCreated)
	require.Equal(t, 0, report.UsersReassigned)
	require.Empty(t, report.Problems)
	require.Len(t, f.depts.depts, 3)
	require.Len(t, f.users.users, 1)
}

func TestRunFeedOrderIndependent(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	// Children before parents: rows defer until the parent lands.
	src.depts = []feed.DepartmentRow{src.depts[2], src.depts[1], src.depts[0]}
	f := newFixture(src)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.DepartmentsCreated)
	require.Empty(t, report.Problems)
}

func TestRunUnresolvedParentReported(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	src.depts = append(src.depts, feed.DepartmentRow{
		ExternalID: "7", DisplayName: "Orphan", ParentExternalID: "404", Active: true,
	})
	f := newFixture(src)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.DepartmentsCreated)
	require.Len(t, report.Problems, 1)
	require.Equal(t, PhaseDepartments, report.Problems[0].Phase)
	require.Equal(t, "7", report.Problems[0].ExternalID)
	_, exists := f.depts.depts["7"]
	require.False(t, exists)
}

func TestRunInactiveDepartmentSkipped(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	src.depts[2].Active = false
	src.roster = nil
	f := newFixture(src)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.DepartmentsSeen)
	_, exists := f.depts.depts["3"]
	require.False(t, exists)
}

func TestRunUnknownRosterDepartment(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	src.roster = append(src.roster, feed.RosterRow{
		ExternalID: "t9", DisplayName: "Bob", DepartmentExternalID: "404",
	})
	f := newFixture(src)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.UsersCreated)
	require.Len(t, report.Problems, 1)
	require.Equal(t, PhaseRoster, report.Problems[0].Phase)
	require.Equal(t, "t9", report.Problems[0].ExternalID)

	// The user still exists, just without a department.
	bob := f.users.users["t9"]
	require.Nil(t, bob.DepartmentID)
	require.Nil(t, bob.AdminDepartmentID)
}

func TestRunInvalidRowsReported(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	src.depts = append(src.depts, feed.DepartmentRow{ExternalID: "8", Active: true}) // no name
	src.roster = append(src.roster, feed.RosterRow{DisplayName: "No ID"})
	f := newFixture(src)

	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Problems, 2)
}

func TestRunUserReassigned(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	f := newFixture(src)
	_, err := f.engine.Run(ctx)
	require.NoError(t, err)

	src.roster[0].DepartmentExternalID = "2"
	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.UsersReassigned)

	user := f.users.users["t1"]
	require.Equal(t, f.depts.depts["2"].ID, *user.DepartmentID)

	// Old chain memberships gone below the new department.
	oldGID := f.memberGroupID(t, "3")
	require.False(t, f.groups.members[oldGID][user.ID])
	for _, ext := range []string{"2", "1"} {
		gid := f.memberGroupID(t, ext)
		require.True(t, f.groups.members[gid][user.ID])
	}
}

func TestRunDepartmentMoveCascades(t *testing.T) {
	ctx := context.Background()
	src := baseFeed()
	src.depts = append(src.depts, feed.DepartmentRow{
		ExternalID: "9", DisplayName: "Campus Z", BoundaryTypeCode: "1", Active: true,
	})
	f := newFixture(src)
	_, err := f.engine.Run(ctx)
	require.NoError(t, err)

	// Move the whole Dept B subtree under the other campus. The user sits
	// two levels down in Office C and must follow.
	src.depts[1].ParentExternalID = "9"
	report, err := f.engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.DepartmentsCreated)

	user := f.users.users["t1"]
	require.Equal(t, f.depts.depts["9"].ID, *user.AdminDepartmentID)

	oldCampusGID := f.memberGroupID(t, "1")
	require.False(t, f.groups.members[oldCampusGID][user.ID])
	for _, ext := range []string{"3", "2", "9"} {
		gid := f.memberGroupID(t, ext)
		require.True(t, f.groups.members[gid][user.ID], "expected t1 in member group of %q after move", ext)
	}
}

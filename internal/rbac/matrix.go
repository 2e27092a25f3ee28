package rbac

// Business object types visible to department-scoped access control.
const (
	ObjectRecord       = "record"
	ObjectProgram      = "program"
	ObjectEvent        = "event"
	ObjectNotification = "notification"
)

// Actions used by baseline grants.
const (
	ActionAdd    = "add"
	ActionView   = "view"
	ActionChange = "change"
	ActionDelete = "delete"
)

// Matrix is the static permission matrix: for each object type and role,
// the baseline actions seeded into a department's groups. Built once at
// process start and immutable afterwards; components receive it by
// injection rather than reading hidden package state.
type Matrix struct {
	entries map[string]map[Role][]string
}

// DefaultMatrix returns the baseline matrix for the system's object types.
func DefaultMatrix() *Matrix {
	all := []string{ActionAdd, ActionView, ActionChange, ActionDelete}
	return &Matrix{entries: map[string]map[Role][]string{
		ObjectRecord: {
			RoleAdmin:  all,
			RoleMember: {ActionAdd, ActionView},
		},
		ObjectProgram: {
			RoleAdmin:  all,
			RoleMember: {ActionView},
		},
		ObjectEvent: {
			RoleAdmin:  all,
			RoleMember: {ActionView},
		},
		ObjectNotification: {
			RoleAdmin:  {ActionAdd, ActionView, ActionChange, ActionDelete},
			RoleMember: nil,
		},
	}}
}

// Actions returns the baseline actions for an object type and role. The
// returned slice must not be mutated.
func (m *Matrix) Actions(objectType string, role Role) []string {
	byRole, ok := m.entries[objectType]
	if !ok {
		return nil
	}
	return byRole[role]
}

// ObjectTypes lists every object type the matrix covers.
func (m *Matrix) ObjectTypes() []string {
	types := make([]string, 0, len(m.entries))
	for t := range m.entries {
		types = append(types, t)
	}
	return types
}

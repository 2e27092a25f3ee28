package rbac

import (
	"fmt"
	"time"
)

// Role is one of the two canonical role buckets per department.
type Role string

const (
	// RoleAdmin is the department-level administrator bucket.
	RoleAdmin Role = "admin"
	// RoleMember is the ordinary staff bucket.
	RoleMember Role = "member"
)

// Group is a named role bucket tied to one department.
type Group struct {
	ID           int64
	Name         string
	DepartmentID int64
	Role         Role
	CreatedAt    time.Time
}

// GroupName derives the canonical group name for a department and role.
// External ids are unique, so names cannot collide across departments.
func GroupName(deptName, deptExternalID string, role Role) string {
	return fmt.Sprintf("%s-%s-%s", deptName, deptExternalID, role)
}

// ModelGrant is a baseline capability: an action on an entire object type.
type ModelGrant struct {
	GroupID    int64
	ObjectType string
	Action     string
}

// ObjectGrant is a capability scoped to one object instance. Grants are
// additive only; the engine never revokes an object-level grant.
type ObjectGrant struct {
	GroupID    int64
	ObjectType string
	ObjectID   int64
	Action     string
}

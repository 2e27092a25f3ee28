// Package propagate grants object-level access at the moment a business
// object is created. It only reads the group and hierarchy structure the
// reconciliation engine maintains.
package propagate

import (
	"context"
	"fmt"

	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/roster"
)

// Object identifies one business object instance.
type Object struct {
	Type string
	ID   int64
}

// Service issues the object-level grants for a freshly created object.
// Construct it over repositories bound to the creating transaction so a
// failure rolls back the object and its grants together.
type Service struct {
	groups rbac.Repository
	depts  orghier.Repository
}

// NewService constructs a Service.
func NewService(groups rbac.Repository, depts orghier.Repository) *Service {
	return &Service{groups: groups, depts: depts}
}

// Propagate grants the creator's member group its baseline capabilities on
// the object, then walks the department chain to the administrative root
// granting each department's admin group the intersection of its baseline
// capabilities with the object's type. Creators without a department are a
// no-op: some object types are creatable department-free.
func (s *Service) Propagate(ctx context.Context, creator roster.User, obj Object) error {
	if creator.DepartmentID == nil {
		return nil
	}

	chain, err := s.depts.AncestorChain(ctx, *creator.DepartmentID)
	if err != nil {
		return fmt.Errorf("propagate: chain for department %d: %w", *creator.DepartmentID, err)
	}

	member, err := s.groups.GroupByDepartmentRole(ctx, chain[0].ID, rbac.RoleMember)
	if err != nil {
		return fmt.Errorf("propagate: member group for %q: %w", chain[0].ExternalID, err)
	}
	if err := s.materialize(ctx, member.ID, obj); err != nil {
		return err
	}

	for _, dept := range chain {
		admin, err := s.groups.GroupByDepartmentRole(ctx, dept.ID, rbac.RoleAdmin)
		if err != nil {
			return fmt.Errorf("propagate: admin group for %q: %w", dept.ExternalID, err)
		}
		if err := s.materialize(ctx, admin.ID, obj); err != nil {
			return err
		}
	}
	return nil
}

// materialize turns a group's model-level grants on the object's type into
// object-level grants, no more and no less.
func (s *Service) materialize(ctx context.Context, groupID int64, obj Object) error {
	actions, err := s.groups.ModelGrantActions(ctx, groupID, obj.Type)
	if err != nil {
		return err
	}
	for _, action := range actions {
		grant := rbac.ObjectGrant{GroupID: groupID, ObjectType: obj.Type, ObjectID: obj.ID, Action: action}
		if err := s.groups.AddObjectGrant(ctx, grant); err != nil {
			return err
		}
	}
	return nil
}

package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trainrec/trainrec/internal/orghier"
)

// Provisioner guarantees the two canonical groups exist per department and
// seeds their baseline capabilities from the static matrix.
type Provisioner struct {
	repo   Repository
	matrix *Matrix
	logger *slog.Logger
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(repo Repository, matrix *Matrix, logger *slog.Logger) *Provisioner {
	return &Provisioner{repo: repo, matrix: matrix, logger: logger}
}

// EnsureGroups gets or creates the admin and member groups for a department.
// created reports whether the pair was newly provisioned.
func (p *Provisioner) EnsureGroups(ctx context.Context, dept orghier.Department) (admin, member Group, created bool, err error) {
	admin, adminCreated, err := p.repo.GetOrCreateGroup(ctx, Group{
		Name:         GroupName(dept.Name, dept.ExternalID, RoleAdmin),
		DepartmentID: dept.ID,
		Role:         RoleAdmin,
	})
	if err != nil {
		return Group{}, Group{}, false, fmt.Errorf("rbac: ensure admin group for %q: %w", dept.ExternalID, err)
	}
	member, memberCreated, err := p.repo.GetOrCreateGroup(ctx, Group{
		Name:         GroupName(dept.Name, dept.ExternalID, RoleMember),
		DepartmentID: dept.ID,
		Role:         RoleMember,
	})
	if err != nil {
		return Group{}, Group{}, false, fmt.Errorf("rbac: ensure member group for %q: %w", dept.ExternalID, err)
	}
	return admin, member, adminCreated || memberCreated, nil
}

// SeedBaseline grants each configured (object type, action) pair to the
// appropriate group. Callers invoke this only when EnsureGroups reported a
// fresh pair: re-seeding an existing department would clobber grant changes
// made by operators since.
func (p *Provisioner) SeedBaseline(ctx context.Context, admin, member Group) error {
	for _, objectType := range p.matrix.ObjectTypes() {
		for _, action := range p.matrix.Actions(objectType, RoleAdmin) {
			if err := p.repo.AddModelGrant(ctx, ModelGrant{GroupID: admin.ID, ObjectType: objectType, Action: action}); err != nil {
				return err
			}
		}
		for _, action := range p.matrix.Actions(objectType, RoleMember) {
			if err := p.repo.AddModelGrant(ctx, ModelGrant{GroupID: member.ID, ObjectType: objectType, Action: action}); err != nil {
				return err
			}
		}
	}
	p.logger.Debug("seeded baseline grants",
		slog.String("admin_group", admin.Name),
		slog.String("member_group", member.Name))
	return nil
}

package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trainrec/trainrec/internal/platform/db"
	"github.com/trainrec/trainrec/internal/shared"
)

// Repository defines persistence for groups, memberships and grants.
type Repository interface {
	GetOrCreateGroup(ctx context.Context, group Group) (Group, bool, error)
	GroupByDepartmentRole(ctx context.Context, departmentID int64, role Role) (Group, error)
	GroupsForUser(ctx context.Context, userID int64) ([]Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	AddModelGrant(ctx context.Context, grant ModelGrant) error
	ModelGrantActions(ctx context.Context, groupID int64, objectType string) ([]string, error)
	AddObjectGrant(ctx context.Context, grant ObjectGrant) error
	ObjectGrants(ctx context.Context, objectType string, objectID int64) ([]ObjectGrant, error)
}

// PGRepository implements Repository using PostgreSQL. It is bound to a
// Querier so the same code runs against the pool or inside a caller's
// transaction (permission propagation requires the latter).
type PGRepository struct {
	q db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{q: q}
}

// GetOrCreateGroup ensures a group row exists, reporting whether it was
// created. INSERT .. ON CONFLICT keeps the operation idempotent under
// repeated runs.
func (r *PGRepository) GetOrCreateGroup(ctx context.Context, group Group) (Group, bool, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO groups (name, department_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (department_id, role) DO NOTHING
		RETURNING id, name, department_id, role, created_at`,
		group.Name, group.DepartmentID, string(group.Role))
	created, err := scanGroup(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Group{}, false, fmt.Errorf("rbac: create group %q: %w", group.Name, err)
	}

	existing, err := r.GroupByDepartmentRole(ctx, group.DepartmentID, group.Role)
	if err != nil {
		return Group{}, false, err
	}
	return existing, false, nil
}

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	var role string
	if err := row.Scan(&g.ID, &g.Name, &g.DepartmentID, &role, &g.CreatedAt); err != nil {
		return Group{}, err
	}
	g.Role = Role(role)
	return g, nil
}

// GroupByDepartmentRole fetches the canonical group for a department role.
func (r *PGRepository) GroupByDepartmentRole(ctx context.Context, departmentID int64, role Role) (Group, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, department_id, role, created_at
		FROM groups WHERE department_id = $1 AND role = $2`,
		departmentID, string(role))
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, shared.ErrNotFound
		}
		return Group{}, fmt.Errorf("rbac: group for department %d role %s: %w", departmentID, role, err)
	}
	return g, nil
}

// GroupsForUser lists every group the user is a member of.
func (r *PGRepository) GroupsForUser(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := r.q.Query(ctx, `
		SELECT g.id, g.name, g.department_id, g.role, g.created_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: groups for user %d: %w", userID, err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddMember inserts a membership, idempotently.
func (r *PGRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, userID)
	if err != nil {
		return fmt.Errorf("rbac: add member %d to group %d: %w", userID, groupID, err)
	}
	return nil
}

// RemoveMember deletes a membership. Removing an absent member is a no-op.
func (r *PGRepository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	_, err := r.q.Exec(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("rbac: remove member %d from group %d: %w", userID, groupID, err)
	}
	return nil
}

// MemberIDs lists the user ids belonging to a group.
func (r *PGRepository) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("rbac: members of group %d: %w", groupID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddModelGrant inserts a baseline grant, idempotently.
func (r *PGRepository) AddModelGrant(ctx context.Context, grant ModelGrant) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO model_grants (group_id, object_type, action)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		grant.GroupID, grant.ObjectType, grant.Action)
	if err != nil {
		return fmt.Errorf("rbac: model grant %s.%s to group %d: %w", grant.ObjectType, grant.Action, grant.GroupID, err)
	}
	return nil
}

// ModelGrantActions returns the actions a group holds on an object type.
func (r *PGRepository) ModelGrantActions(ctx context.Context, groupID int64, objectType string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT action FROM model_grants
		WHERE group_id = $1 AND object_type = $2 ORDER BY action`, groupID, objectType)
	if err != nil {
		return nil, fmt.Errorf("rbac: model grants for group %d: %w", groupID, err)
	}
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// AddObjectGrant inserts an object-level grant, idempotently.
func (r *PGRepository) AddObjectGrant(ctx context.Context, grant ObjectGrant) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO object_grants (group_id, object_type, object_id, action)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		grant.GroupID, grant.ObjectType, grant.ObjectID, grant.Action)
	if err != nil {
		return fmt.Errorf("rbac: object grant %s.%s on %s/%d: %w", grant.ObjectType, grant.Action, grant.ObjectType, grant.ObjectID, err)
	}
	return nil
}

// ObjectGrants lists every grant issued against one object instance.
func (r *PGRepository) ObjectGrants(ctx context.Context, objectType string, objectID int64) ([]ObjectGrant, error) {
	rows, err := r.q.Query(ctx, `
		SELECT group_id, object_type, object_id, action
		FROM object_grants WHERE object_type = $1 AND object_id = $2
		ORDER BY group_id, action`, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("rbac: object grants %s/%d: %w", objectType, objectID, err)
	}
	defer rows.Close()

	var grants []ObjectGrant
	for rows.Next() {
		var g ObjectGrant
		if err := rows.Scan(&g.GroupID, &g.ObjectType, &g.ObjectID, &g.Action); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

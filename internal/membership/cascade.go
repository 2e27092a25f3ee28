// Package membership keeps each user's group memberships consistent with
// their department assignment, cascading along the ancestor chain up to the
// administrative root.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/shared"
)

// ChainResolver yields a department's ancestor chain, self first, ending at
// the administrative root. Satisfied by *orghier.Forest.
type ChainResolver interface {
	AncestorChain(externalID string) ([]orghier.Department, error)
}

// Cascader adds and removes a user's member-group memberships along a
// department's ancestor chain. Admin groups are managed by explicit
// administrative assignment and are never touched here.
type Cascader struct {
	groups rbac.Repository
	chains ChainResolver
	logger *slog.Logger
}

// NewCascader constructs a Cascader.
func NewCascader(groups rbac.Repository, chains ChainResolver, logger *slog.Logger) *Cascader {
	return &Cascader{groups: groups, chains: chains, logger: logger}
}

// AttachToChain adds the user to the member group of the department and of
// every ancestor up to the administrative root. A missing member group is a
// provisioning bug and aborts the operation.
func (c *Cascader) AttachToChain(ctx context.Context, userID int64, dept orghier.Department) error {
	chain, err := c.chains.AncestorChain(dept.ExternalID)
	if err != nil {
		return fmt.Errorf("membership: chain for %q: %w", dept.ExternalID, err)
	}
	for _, d := range chain {
		group, err := c.groups.GroupByDepartmentRole(ctx, d.ID, rbac.RoleMember)
		if err != nil {
			return fmt.Errorf("membership: member group for %q: %w", d.ExternalID, err)
		}
		if err := c.groups.AddMember(ctx, group.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

// DetachFromChain removes the user from the member group of the department
// and of every ancestor up to the administrative root. A chain department
// without a member group has nothing to detach from and is skipped with a
// warning.
func (c *Cascader) DetachFromChain(ctx context.Context, userID int64, dept orghier.Department) error {
	chain, err := c.chains.AncestorChain(dept.ExternalID)
	if err != nil {
		return fmt.Errorf("membership: chain for %q: %w", dept.ExternalID, err)
	}
	for _, d := range chain {
		group, err := c.groups.GroupByDepartmentRole(ctx, d.ID, rbac.RoleMember)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				c.logger.Warn("member group missing during detach",
					slog.String("department", d.ExternalID),
					slog.Int64("user_id", userID))
				continue
			}
			return err
		}
		if err := c.groups.RemoveMember(ctx, group.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

// Reassign moves the user from one chain to another. Detecting that the
// assignment actually changed is the caller's job; Reassign applies the
// move unconditionally, exactly once.
func (c *Cascader) Reassign(ctx context.Context, userID int64, oldDept, newDept *orghier.Department) error {
	if oldDept != nil {
		if err := c.DetachFromChain(ctx, userID, *oldDept); err != nil {
			return err
		}
	}
	if newDept != nil {
		if err := c.AttachToChain(ctx, userID, *newDept); err != nil {
			return err
		}
	}
	return nil
}

package orghier

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trainrec/trainrec/internal/platform/db"
	"github.com/trainrec/trainrec/internal/shared"
)

// Repository defines persistence operations for the department forest.
type Repository interface {
	Insert(ctx context.Context, dept Department) (Department, error)
	Update(ctx context.Context, dept Department) error
	GetByExternalID(ctx context.Context, externalID string) (Department, error)
	ListAll(ctx context.Context) ([]Department, error)
	AncestorChain(ctx context.Context, id int64) ([]Department, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	q db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{q: q}
}

const departmentColumns = `id, external_id, name, parent_id, boundary_type, created_at, updated_at`

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	var boundary string
	if err := row.Scan(&d.ID, &d.ExternalID, &d.Name, &d.ParentID, &boundary, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Department{}, err
	}
	d.Boundary = BoundaryType(boundary)
	return d, nil
}

// Insert creates a department row.
func (r *PGRepository) Insert(ctx context.Context, dept Department) (Department, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO departments (external_id, name, parent_id, boundary_type)
		VALUES ($1, $2, $3, $4)
		RETURNING `+departmentColumns,
		dept.ExternalID, dept.Name, dept.ParentID, string(dept.Boundary))
	created, err := scanDepartment(row)
	if err != nil {
		return Department{}, fmt.Errorf("orghier: insert %q: %w", dept.ExternalID, err)
	}
	return created, nil
}

// Update rewrites name, parent and boundary for an existing department.
func (r *PGRepository) Update(ctx context.Context, dept Department) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE departments
		SET name = $2, parent_id = $3, boundary_type = $4, updated_at = now()
		WHERE id = $1`,
		dept.ID, dept.Name, dept.ParentID, string(dept.Boundary))
	if err != nil {
		return fmt.Errorf("orghier: update %q: %w", dept.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByExternalID fetches a department by its external identifier.
func (r *PGRepository) GetByExternalID(ctx context.Context, externalID string) (Department, error) {
	row := r.q.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE external_id = $1`, externalID)
	dept, err := scanDepartment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, shared.ErrNotFound
		}
		return Department{}, fmt.Errorf("orghier: get %q: %w", externalID, err)
	}
	return dept, nil
}

// ListAll returns every department.
func (r *PGRepository) ListAll(ctx context.Context) ([]Department, error) {
	rows, err := r.q.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("orghier: list: %w", err)
	}
	defer rows.Close()

	var depts []Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("orghier: scan: %w", err)
		}
		depts = append(depts, dept)
	}
	return depts, rows.Err()
}

// AncestorChain returns the department and its ancestors up to and including
// the first campus-tagged department (or the root when none is tagged). A
// campus-tagged department is its own one-element chain, matching the
// in-memory forest. Used by request-path readers; the batch engine resolves
// chains in memory.
func (r *PGRepository) AncestorChain(ctx context.Context, id int64) ([]Department, error) {
	rows, err := r.q.Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT `+departmentColumns+`, 0 AS depth FROM departments WHERE id = $1
			UNION ALL
			SELECT d.id, d.external_id, d.name, d.parent_id, d.boundary_type, d.created_at, d.updated_at, c.depth + 1
			FROM departments d
			JOIN chain c ON d.id = c.parent_id
		)
		SELECT id, external_id, name, parent_id, boundary_type, created_at, updated_at
		FROM chain ORDER BY depth`, id)
	if err != nil {
		return nil, fmt.Errorf("orghier: ancestor chain %d: %w", id, err)
	}
	defer rows.Close()

	var chain []Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("orghier: scan chain: %w", err)
		}
		chain = append(chain, dept)
		if dept.Boundary.Administrative() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, shared.ErrNotFound
	}
	return chain, nil
}

var _ Repository = (*PGRepository)(nil)

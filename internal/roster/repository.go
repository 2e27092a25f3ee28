package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trainrec/trainrec/internal/platform/db"
	"github.com/trainrec/trainrec/internal/shared"
)

// Repository defines persistence operations for the user roster.
type Repository interface {
	GetByExternalID(ctx context.Context, externalID string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) error
	ListByDepartmentIDs(ctx context.Context, departmentIDs []int64) ([]User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	q db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{q: q}
}

const userColumns = `id, external_id, name, department_id, admin_department_id, password_hash,
	birth_date, tenure_status, education, title, teaching_type, phone, email, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.DepartmentID, &u.AdminDepartmentID, &u.PasswordHash,
		&u.BirthDate, &u.TenureStatus, &u.Education, &u.Title, &u.TeachingType, &u.Phone, &u.Email,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByExternalID fetches a user by external identifier.
func (r *PGRepository) GetByExternalID(ctx context.Context, externalID string) (User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("roster: get %q: %w", externalID, err)
	}
	return u, nil
}

// GetByID fetches a user by primary key.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("roster: get id %d: %w", id, err)
	}
	return u, nil
}

// Create inserts a new user row.
func (r *PGRepository) Create(ctx context.Context, user User) (User, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO users (external_id, name, department_id, admin_department_id, password_hash,
			birth_date, tenure_status, education, title, teaching_type, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+userColumns,
		user.ExternalID, user.Name, user.DepartmentID, user.AdminDepartmentID, user.PasswordHash,
		user.BirthDate, user.TenureStatus, user.Education, user.Title, user.TeachingType,
		user.Phone, user.Email)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("roster: create %q: %w", user.ExternalID, err)
	}
	return created, nil
}

// Update rewrites the mutable mirrored fields of a user.
func (r *PGRepository) Update(ctx context.Context, user User) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users
		SET name = $2, department_id = $3, admin_department_id = $4,
			birth_date = $5, tenure_status = $6, education = $7, title = $8,
			teaching_type = $9, phone = $10, email = $11, updated_at = now()
		WHERE id = $1`,
		user.ID, user.Name, user.DepartmentID, user.AdminDepartmentID,
		user.BirthDate, user.TenureStatus, user.Education, user.Title,
		user.TeachingType, user.Phone, user.Email)
	if err != nil {
		return fmt.Errorf("roster: update %q: %w", user.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListByDepartmentIDs returns every user assigned to any of the given
// departments. Used for subtree-wide membership cascades.
func (r *PGRepository) ListByDepartmentIDs(ctx context.Context, departmentIDs []int64) ([]User, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE department_id = ANY($1) ORDER BY id`, departmentIDs)
	if err != nil {
		return nil, fmt.Errorf("roster: list by departments: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("roster: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

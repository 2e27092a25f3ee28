package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/platform/db"
	"github.com/trainrec/trainrec/internal/propagate"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/roster"
)

// Service provides business logic for training records.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a records service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Create inserts a training record and propagates object-level grants to
// the creator's member group and the admin groups along their department
// chain, all inside one transaction. A propagation failure aborts the
// creation and surfaces to the caller.
func (s *Service) Create(ctx context.Context, creatorID int64, req CreateRecordRequest) (*TrainingRecord, error) {
	var record TrainingRecord
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		users := roster.NewRepository(tx)
		creator, err := users.GetByID(ctx, creatorID)
		if err != nil {
			return fmt.Errorf("records: creator %d: %w", creatorID, err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO training_records (title, summary, creator_id)
			VALUES ($1, $2, $3)
			RETURNING id, title, summary, creator_id, created_at, updated_at`,
			req.Title, req.Summary, creator.ID)
		if err := row.Scan(&record.ID, &record.Title, &record.Summary, &record.CreatorID, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return fmt.Errorf("records: insert: %w", err)
		}

		prop := propagate.NewService(rbac.NewRepository(tx), orghier.NewRepository(tx))
		return prop.Propagate(ctx, creator, propagate.Object{Type: rbac.ObjectRecord, ID: record.ID})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get fetches a training record by id.
func (s *Service) Get(ctx context.Context, id int64) (*TrainingRecord, error) {
	var record TrainingRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, summary, creator_id, created_at, updated_at
		FROM training_records WHERE id = $1`, id)
	if err := row.Scan(&record.ID, &record.Title, &record.Summary, &record.CreatorID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("records: get %d: %w", id, err)
	}
	return &record, nil
}

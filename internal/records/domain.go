// Package records owns training records, the primary business object of the
// system. Creating one is the canonical call site for permission
// propagation: the object and its grants commit or roll back together.
package records

import "time"

// TrainingRecord is one training activity entry.
type TrainingRecord struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatorID int64     `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRecordRequest is the payload for creating a training record.
type CreateRecordRequest struct {
	Title   string `json:"title" validate:"required"`
	Summary string `json:"summary"`
}

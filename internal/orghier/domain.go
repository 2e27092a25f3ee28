package orghier

import "time"

// BoundaryType tags a department as an administrative scope boundary.
type BoundaryType string

const (
	// BoundaryCampus marks a campus-level root scope.
	BoundaryCampus BoundaryType = "campus"
	// BoundaryUnit marks a mid-level organizational unit scope.
	BoundaryUnit BoundaryType = "unit"
	// BoundaryOther marks a department that is not a scope boundary.
	BoundaryOther BoundaryType = "other"
)

// ParseBoundary maps an external boundary code to a BoundaryType.
// Unknown codes fall back to BoundaryOther rather than failing.
func ParseBoundary(code string) BoundaryType {
	switch code {
	case "campus", "1":
		return BoundaryCampus
	case "unit", "2":
		return BoundaryUnit
	default:
		return BoundaryOther
	}
}

// Administrative reports whether the tag terminates administrative
// resolution. Only campus scopes terminate a walk; unit tags describe
// reporting granularity and keep the walk going, which is what keeps
// resolution idempotent for departments sitting directly under a campus.
func (b BoundaryType) Administrative() bool {
	return b == BoundaryCampus
}

// Department is one node of the organizational forest.
type Department struct {
	ID         int64
	ExternalID string
	Name       string
	ParentID   *int64
	Boundary   BoundaryType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

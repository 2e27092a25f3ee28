// Package feed reads the external department and roster feeds. Both are
// owned by another system and treated as read-only sources of truth.
package feed

// DepartmentRow is one row of the external department feed.
type DepartmentRow struct {
	ExternalID       string `json:"external_id" validate:"required"`
	DisplayName      string `json:"display_name" validate:"required"`
	ParentExternalID string `json:"parent_external_id"`
	BoundaryTypeCode string `json:"boundary_type_code"`
	Active           bool   `json:"active_flag"`
}

// RosterRow is one row of the external roster feed.
type RosterRow struct {
	ExternalID           string `json:"external_id" validate:"required"`
	DisplayName          string `json:"display_name" validate:"required"`
	DepartmentExternalID string `json:"department_external_id"`
	BirthDate            string `json:"birth_date"`
	TenureStatusCode     string `json:"tenure_status_code"`
	EducationCode        string `json:"education_code"`
	TitleCode            string `json:"title_code"`
	TeachingTypeCode     string `json:"teaching_type_code"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
}

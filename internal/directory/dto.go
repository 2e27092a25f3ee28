// Package directory is the read-only HTTP surface over the entities the
// reconciliation engine maintains, serving authorization checks and
// directory display.
package directory

import "time"

// DepartmentView is a department with its resolved administrative ancestor.
type DepartmentView struct {
	ExternalID          string  `json:"external_id"`
	Name                string  `json:"name"`
	BoundaryType        string  `json:"boundary_type"`
	ParentExternalID    *string `json:"parent_external_id,omitempty"`
	AdministrativeID    *string `json:"administrative_external_id,omitempty"`
	AdministrativeName  *string `json:"administrative_name,omitempty"`
}

// GroupView is a group with its role.
type GroupView struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// UserView is a user with department context and group memberships.
type UserView struct {
	ExternalID           string      `json:"external_id"`
	Name                 string      `json:"name"`
	DepartmentExternalID *string     `json:"department_external_id,omitempty"`
	AdministrativeID     *string     `json:"administrative_external_id,omitempty"`
	Title                string      `json:"title"`
	TenureStatus         string      `json:"tenure_status"`
	Education            string      `json:"education"`
	TeachingType         string      `json:"teaching_type"`
	Age                  int         `json:"age"`
	Phone                string      `json:"phone"`
	Email                string      `json:"email"`
	Groups               []GroupView `json:"groups"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

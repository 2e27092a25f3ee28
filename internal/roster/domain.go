package roster

import "time"

// User mirrors one teacher from the external roster feed. Users are created
// on first sighting and updated on every reconciliation pass; the engine
// never hard-deletes them.
type User struct {
	ID                int64
	ExternalID        string
	Name              string
	DepartmentID      *int64
	AdminDepartmentID *int64
	PasswordHash      string
	BirthDate         *time.Time
	TenureStatus      string
	Education         string
	Title             string
	TeachingType      string
	Phone             string
	Email             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Age derives the user's age in whole years at the given instant.
func (u User) Age(now time.Time) int {
	if u.BirthDate == nil {
		return 0
	}
	years := now.Year() - u.BirthDate.Year()
	anniversary := u.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

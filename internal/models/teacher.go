package models

import "time"

// Teacher represents a faculty member.
type Teacher struct {
	ID                  string    `db:"id" json:"id"`
	EmployeeID          string    `db:"employee_id" json:"employee_id"`
	FirstName           string    `db:"first_name" json:"first_name"`
	LastName            string    `db:"last_name" json:"last_name"`
	Email               string    `db:"email" json:"email"`
	Phone               string    `db:"phone" json:"phone"`
	DesignatedSectionID *string   `db:"designated_section_id" json:"designated_section_id,omitempty"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter encapsulates search parameters for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

package models

import "time"

// Section is a named class grouping of students within a strand.
// Section names are unique within their strand.
type Section struct {
	ID          string    `db:"id" json:"id"`
	StrandID    string    `db:"strand_id" json:"strand_id"`
	Name        string    `db:"name" json:"name"`
	AdviserName *string   `db:"adviser_name" json:"adviser_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SectionDetail enriches Section with its strand name.
type SectionDetail struct {
	Section
	StrandName string `db:"strand_name" json:"strand_name"`
}

// SectionFilter encapsulates search parameters for listing sections.
type SectionFilter struct {
	Search    string
	StrandID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

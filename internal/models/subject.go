package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject is a course offering applicable to one or more strands.
type Subject struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	StrandIDs   pq.StringArray `db:"strand_ids" json:"strand_ids"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AppliesToStrand reports whether the subject is offered for the strand.
func (s *Subject) AppliesToStrand(strandID string) bool {
	for _, id := range s.StrandIDs {
		if id == strandID {
			return true
		}
	}
	return false
}

// SubjectFilter encapsulates search parameters for listing subjects.
type SubjectFilter struct {
	Search    string
	StrandID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

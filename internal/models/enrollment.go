package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
// Approved and rejected are terminal; nothing transitions back to pending.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// Enrollment captures a student's submitted request to be registered for a
// strand/semester/school-year, subject to admin approval.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	StrandID        string           `db:"strand_id" json:"strand_id"`
	GradeLevel      string           `db:"grade_level" json:"grade_level"`
	Semester        string           `db:"semester" json:"semester"`
	SchoolYear      string           `db:"school_year" json:"school_year"`
	ClearanceURL    *string          `db:"clearance_url" json:"clearance_url,omitempty"`
	GradeCopyURL    *string          `db:"grade_copy_url" json:"grade_copy_url,omitempty"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	SectionID       *string          `db:"section_id" json:"section_id,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student, strand and section info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string  `db:"student_name" json:"student_name"`
	StudentNumber string  `db:"student_number" json:"student_number"`
	StrandName    string  `db:"strand_name" json:"strand_name"`
	SectionName   *string `db:"section_name" json:"section_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments. Search matches
// the student's name case-insensitively.
type EnrollmentFilter struct {
	Status     EnrollmentStatus
	SchoolYear string
	Semester   string
	StudentID  string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// StudentEnrollmentPatch carries the denormalized pointers written to the
// student record when an enrollment is approved.
type StudentEnrollmentPatch struct {
	StudentID  string
	SectionID  string
	Semester   string
	SchoolYear string
}

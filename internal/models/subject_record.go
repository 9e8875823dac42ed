package models

import (
	"time"

	"github.com/lib/pq"
)

// SubjectRecord is a teacher's class roster for one subject/section/term.
// Roster membership is kept as an explicit array; grades live in their own
// rows so that concurrent per-student grade edits do not overwrite each other.
type SubjectRecord struct {
	ID         string         `db:"id" json:"id"`
	TeacherID  string         `db:"teacher_id" json:"teacher_id"`
	SubjectID  string         `db:"subject_id" json:"subject_id"`
	SectionID  string         `db:"section_id" json:"section_id"`
	Semester   string         `db:"semester" json:"semester"`
	SchoolYear string         `db:"school_year" json:"school_year"`
	StudentIDs pq.StringArray `db:"student_ids" json:"student_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// HasStudent reports whether the student is on the roster.
func (r *SubjectRecord) HasStudent(studentID string) bool {
	for _, id := range r.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// SubjectRecordDetail enriches SubjectRecord with display names.
type SubjectRecordDetail struct {
	SubjectRecord
	SubjectName string `db:"subject_name" json:"subject_name"`
	SectionName string `db:"section_name" json:"section_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// StudentGrade is one student's grade row within a subject record.
type StudentGrade struct {
	ID              string    `db:"id" json:"id"`
	SubjectRecordID string    `db:"subject_record_id" json:"subject_record_id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	FirstQuarter    *float64  `db:"first_quarter" json:"first_quarter,omitempty"`
	SecondQuarter   *float64  `db:"second_quarter" json:"second_quarter,omitempty"`
	FinalGrade      *float64  `db:"final_grade" json:"final_grade,omitempty"`
	Rating          *string   `db:"rating" json:"rating,omitempty"`
	Remarks         *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StudentGradeDetail enriches StudentGrade with the subject and term it
// belongs to, for a student's cross-offering grade view.
type StudentGradeDetail struct {
	StudentGrade
	SubjectName string `db:"subject_name" json:"subject_name"`
	Semester    string `db:"semester" json:"semester"`
	SchoolYear  string `db:"school_year" json:"school_year"`
}

// SubjectRecordFilter encapsulates search parameters for listing records.
type SubjectRecordFilter struct {
	TeacherID  string
	SectionID  string
	SubjectID  string
	Semester   string
	SchoolYear string
	StudentID  string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

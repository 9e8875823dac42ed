package models

import "time"

// StudentStatus tracks a student's standing with the school.
type StudentStatus string

// Possible student statuses. Records created before the status field existed
// carry no value at all; they are reported as StudentStatusNotSet.
const (
	StudentStatusEnrolled    StudentStatus = "enrolled"
	StudentStatusTransferIn  StudentStatus = "transfer-in"
	StudentStatusTransferOut StudentStatus = "transfer-out"
	StudentStatusIncomplete  StudentStatus = "incomplete"
	StudentStatusGraduated   StudentStatus = "graduated"
	StudentStatusNotSet      StudentStatus = "not-set"
)

// Student represents a learner registered at the school.
type Student struct {
	ID              string         `db:"id" json:"id"`
	StudentID       string         `db:"student_id" json:"student_id"`
	FirstName       string         `db:"first_name" json:"first_name"`
	LastName        string         `db:"last_name" json:"last_name"`
	MiddleName      string         `db:"middle_name" json:"middle_name,omitempty"`
	Suffix          string         `db:"suffix" json:"suffix,omitempty"`
	Sex             string         `db:"sex" json:"sex"`
	BirthDate       *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	Address         string         `db:"address" json:"address"`
	Email           string         `db:"email" json:"email"`
	GuardianName    string         `db:"guardian_name" json:"guardian_name"`
	GuardianContact string         `db:"guardian_contact" json:"guardian_contact"`
	Status          *StudentStatus `db:"status" json:"-"`

	EnrolledForSectionID  *string `db:"enrolled_for_section_id" json:"enrolled_for_section_id,omitempty"`
	EnrolledForSemester   *string `db:"enrolled_for_semester" json:"enrolled_for_semester,omitempty"`
	EnrolledForSchoolYear *string `db:"enrolled_for_school_year" json:"enrolled_for_school_year,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayStatus resolves the stored status, mapping missing values to
// StudentStatusNotSet and never to one of the explicit statuses.
func (s *Student) DisplayStatus() StudentStatus {
	if s.Status == nil || *s.Status == "" {
		return StudentStatusNotSet
	}
	return *s.Status
}

// StudentView is the JSON shape returned by the API; the status field always
// carries a resolved value.
type StudentView struct {
	Student
	Status StudentStatus `json:"status"`
}

// View converts the record into its API representation.
func (s Student) View() StudentView {
	return StudentView{Student: s, Status: s.DisplayStatus()}
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    string
	SectionID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

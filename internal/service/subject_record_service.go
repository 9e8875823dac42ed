package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
	"github.com/AllenCortuna/omnhs-api/pkg/export"
)

type subjectRecordRepository interface {
	List(ctx context.Context, filter models.SubjectRecordFilter) ([]models.SubjectRecordDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SubjectRecord, error)
	FindDetailByID(ctx context.Context, id string) (*models.SubjectRecordDetail, error)
	Exists(ctx context.Context, subjectID, sectionID, semester, schoolYear string) (bool, error)
	Create(ctx context.Context, record *models.SubjectRecord) error
	AddStudent(ctx context.Context, recordID, studentID string) error
	RemoveStudent(ctx context.Context, recordID, studentID string) error
	Delete(ctx context.Context, id string) error
	UpsertGrade(ctx context.Context, grade *models.StudentGrade) error
	ListGrades(ctx context.Context, recordID string) ([]models.StudentGrade, error)
	ListGradesForStudent(ctx context.Context, studentID, semester, schoolYear string) ([]models.StudentGradeDetail, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type recordStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type recordTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateSubjectRecordRequest opens a class offering for a term.
type CreateSubjectRecordRequest struct {
	TeacherID  string `json:"teacher_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	SectionID  string `json:"section_id" validate:"required"`
	Semester   string `json:"semester" validate:"required,oneof=1st 2nd"`
	SchoolYear string `json:"school_year" validate:"required"`
}

// UpsertGradeRequest writes one student's marks for an offering.
type UpsertGradeRequest struct {
	StudentID     string   `json:"student_id" validate:"required"`
	FirstQuarter  *float64 `json:"first_quarter" validate:"omitempty,gte=0,lte=100"`
	SecondQuarter *float64 `json:"second_quarter" validate:"omitempty,gte=0,lte=100"`
	FinalGrade    *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=100"`
	Rating        *string  `json:"rating"`
	Remarks       *string  `json:"remarks"`
}

// GradeSheetRow pairs a roster entry with its grade values for display and
// export.
type GradeSheetRow struct {
	StudentID     string   `json:"student_id"`
	StudentNumber string   `json:"student_number"`
	StudentName   string   `json:"student_name"`
	FirstQuarter  *float64 `json:"first_quarter,omitempty"`
	SecondQuarter *float64 `json:"second_quarter,omitempty"`
	FinalGrade    *float64 `json:"final_grade,omitempty"`
	Rating        *string  `json:"rating,omitempty"`
	Remarks       *string  `json:"remarks,omitempty"`
}

// SubjectRecordService manages class rosters and grades.
type SubjectRecordService struct {
	repo       subjectRecordRepository
	subjects   subjectReader
	sections   enrollmentSectionReader
	teachers   recordTeacherReader
	students   recordStudentReader
	dispatcher sideEffectDispatcher
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSubjectRecordService constructs the subject record service.
func NewSubjectRecordService(repo subjectRecordRepository, subjects subjectReader, sections enrollmentSectionReader, teachers recordTeacherReader, students recordStudentReader, dispatcher sideEffectDispatcher, validate *validator.Validate, logger *zap.Logger) *SubjectRecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectRecordService{
		repo:       repo,
		subjects:   subjects,
		sections:   sections,
		teachers:   teachers,
		students:   students,
		dispatcher: dispatcher,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
	}
}

// List returns subject records and pagination metadata.
func (s *SubjectRecordService) List(ctx context.Context, filter models.SubjectRecordFilter) ([]models.SubjectRecordDetail, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject records")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a subject record with display names.
func (s *SubjectRecordService) Get(ctx context.Context, id string) (*models.SubjectRecordDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject record")
	}
	return detail, nil
}

// Create opens a class offering. The subject must apply to the section's
// strand and no duplicate offering may exist for the term.
func (s *SubjectRecordService) Create(ctx context.Context, req CreateSubjectRecordRequest) (*models.SubjectRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject record payload")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if !subject.AppliesToStrand(section.StrandID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject does not apply to the section's strand")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	exists, err := s.repo.Exists(ctx, req.SubjectID, req.SectionID, req.Semester, req.SchoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing offering")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an offering for this subject, section and term already exists")
	}

	record := &models.SubjectRecord{
		TeacherID:  req.TeacherID,
		SubjectID:  req.SubjectID,
		SectionID:  req.SectionID,
		Semester:   req.Semester,
		SchoolYear: req.SchoolYear,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an offering for this subject, section and term already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject record")
	}
	return record, nil
}

// AddStudent enrolls a student onto the class roster.
func (s *SubjectRecordService) AddStudent(ctx context.Context, recordID, studentID string) error {
	if _, err := s.loadRecord(ctx, recordID); err != nil {
		return err
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.AddStudent(ctx, recordID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student to roster")
	}
	return nil
}

// RemoveStudent takes a student off the roster. Their grade rows stay.
func (s *SubjectRecordService) RemoveStudent(ctx context.Context, recordID, studentID string) error {
	if _, err := s.loadRecord(ctx, recordID); err != nil {
		return err
	}
	if err := s.repo.RemoveStudent(ctx, recordID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student from roster")
	}
	return nil
}

// Delete removes an offering along with its grade rows.
func (s *SubjectRecordService) Delete(ctx context.Context, id string) error {
	if _, err := s.loadRecord(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject record")
	}
	return nil
}

// UpsertGrade writes one student's marks. The student must be on the roster
// and the acting teacher must own the offering.
func (s *SubjectRecordService) UpsertGrade(ctx context.Context, recordID string, req UpsertGradeRequest, actorTeacherID, actorUserID string) (*models.StudentGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if actorTeacherID != "" && record.TeacherID != actorTeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned teacher may grade this offering")
	}
	if !record.HasStudent(req.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not on the class roster")
	}

	grade := &models.StudentGrade{
		SubjectRecordID: recordID,
		StudentID:       req.StudentID,
		FirstQuarter:    req.FirstQuarter,
		SecondQuarter:   req.SecondQuarter,
		FinalGrade:      req.FinalGrade,
		Rating:          req.Rating,
		Remarks:         req.Remarks,
	}
	if err := s.repo.UpsertGrade(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorUserID,
		Action:     models.AuditActionGradeUpsert,
		Resource:   "subject_record",
		ResourceID: &recordID,
		NewValues:  []byte(`{"student_id":"` + req.StudentID + `"}`),
	})
	return grade, nil
}

// GradeSheet assembles the roster with grades for an offering.
func (s *SubjectRecordService) GradeSheet(ctx context.Context, recordID string) ([]GradeSheetRow, error) {
	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	grades, err := s.repo.ListGrades(ctx, recordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	byStudent := make(map[string]models.StudentGrade, len(grades))
	for _, grade := range grades {
		byStudent[grade.StudentID] = grade
	}

	rows := make([]GradeSheetRow, 0, len(record.StudentIDs))
	for _, studentID := range record.StudentIDs {
		row := GradeSheetRow{StudentID: studentID}
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
			}
		} else {
			row.StudentNumber = student.StudentID
			row.StudentName = student.LastName + ", " + student.FirstName
		}
		if grade, ok := byStudent[studentID]; ok {
			row.FirstQuarter = grade.FirstQuarter
			row.SecondQuarter = grade.SecondQuarter
			row.FinalGrade = grade.FinalGrade
			row.Rating = grade.Rating
			row.Remarks = grade.Remarks
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// StudentGrades returns a student's grades across offerings for a term.
func (s *SubjectRecordService) StudentGrades(ctx context.Context, studentID, semester, schoolYear string) ([]models.StudentGradeDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	grades, err := s.repo.ListGradesForStudent(ctx, studentID, semester, schoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student grades")
	}
	return grades, nil
}

// ExportGradeSheet renders the grade sheet as CSV or PDF bytes.
func (s *SubjectRecordService) ExportGradeSheet(ctx context.Context, recordID, format string) ([]byte, string, error) {
	detail, err := s.Get(ctx, recordID)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.GradeSheet(ctx, recordID)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"Student No", "Name", "1st Quarter", "2nd Quarter", "Final", "Rating", "Remarks"}
	dataset := export.Dataset{Headers: headers}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student No":  row.StudentNumber,
			"Name":        row.StudentName,
			"1st Quarter": formatGrade(row.FirstQuarter),
			"2nd Quarter": formatGrade(row.SecondQuarter),
			"Final":       formatGrade(row.FinalGrade),
			"Rating":      stringOrEmpty(row.Rating),
			"Remarks":     stringOrEmpty(row.Remarks),
		})
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		title := fmt.Sprintf("%s - %s (%s SY %s)", detail.SubjectName, detail.SectionName, detail.Semester, detail.SchoolYear)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *SubjectRecordService) loadRecord(ctx context.Context, id string) (*models.SubjectRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject record")
	}
	return record, nil
}

func formatGrade(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', 2, 64)
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

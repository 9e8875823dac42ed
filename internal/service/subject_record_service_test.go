package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type mockSubjectRecordRepo struct {
	records map[string]*models.SubjectRecord
	details map[string]*models.SubjectRecordDetail
	grades  map[string][]models.StudentGrade
	exists  bool
	added   []string
	removed []string
	deleted []string
	upserts []*models.StudentGrade
}

func (m *mockSubjectRecordRepo) List(ctx context.Context, filter models.SubjectRecordFilter) ([]models.SubjectRecordDetail, int, error) {
	return nil, 0, nil
}

func (m *mockSubjectRecordRepo) FindByID(ctx context.Context, id string) (*models.SubjectRecord, error) {
	if r, ok := m.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRecordRepo) FindDetailByID(ctx context.Context, id string) (*models.SubjectRecordDetail, error) {
	if d, ok := m.details[id]; ok {
		cp := *d
		return &cp, nil
	}
	if r, ok := m.records[id]; ok {
		return &models.SubjectRecordDetail{SubjectRecord: *r}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRecordRepo) Exists(ctx context.Context, subjectID, sectionID, semester, schoolYear string) (bool, error) {
	return m.exists, nil
}

func (m *mockSubjectRecordRepo) Create(ctx context.Context, record *models.SubjectRecord) error {
	if m.records == nil {
		m.records = make(map[string]*models.SubjectRecord)
	}
	if record.ID == "" {
		record.ID = "generated"
	}
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

func (m *mockSubjectRecordRepo) AddStudent(ctx context.Context, recordID, studentID string) error {
	m.added = append(m.added, studentID)
	return nil
}

func (m *mockSubjectRecordRepo) RemoveStudent(ctx context.Context, recordID, studentID string) error {
	m.removed = append(m.removed, studentID)
	return nil
}

func (m *mockSubjectRecordRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSubjectRecordRepo) UpsertGrade(ctx context.Context, grade *models.StudentGrade) error {
	m.upserts = append(m.upserts, grade)
	return nil
}

func (m *mockSubjectRecordRepo) ListGrades(ctx context.Context, recordID string) ([]models.StudentGrade, error) {
	return m.grades[recordID], nil
}

func (m *mockSubjectRecordRepo) ListGradesForStudent(ctx context.Context, studentID, semester, schoolYear string) ([]models.StudentGradeDetail, error) {
	return nil, nil
}

type mockSubjectReader struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockTeacherReader struct {
	teachers map[string]*models.Teacher
}

func (m *mockTeacherReader) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := m.teachers[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func newSubjectRecordFixture() (*mockSubjectRecordRepo, *mockDispatcher, *SubjectRecordService) {
	repo := &mockSubjectRecordRepo{
		records: map[string]*models.SubjectRecord{
			"sr1": {
				ID: "sr1", TeacherID: "t1", SubjectID: "sub1", SectionID: "sec1",
				Semester: "1st", SchoolYear: "2026-2027",
				StudentIDs: pq.StringArray{"s1", "s2"},
			},
		},
		details: map[string]*models.SubjectRecordDetail{
			"sr1": {
				SubjectRecord: models.SubjectRecord{
					ID: "sr1", TeacherID: "t1", SubjectID: "sub1", SectionID: "sec1",
					Semester: "1st", SchoolYear: "2026-2027",
					StudentIDs: pq.StringArray{"s1", "s2"},
				},
				SubjectName: "General Mathematics",
				SectionName: "Faraday",
				TeacherName: "Maria Santos",
			},
		},
	}
	subjects := &mockSubjectReader{subjects: map[string]*models.Subject{
		"sub1": {ID: "sub1", Name: "General Mathematics", StrandIDs: pq.StringArray{"st1"}},
	}}
	sections := &mockSectionReader{sections: map[string]*models.Section{
		"sec1": {ID: "sec1", StrandID: "st1", Name: "Faraday"},
		"sec9": {ID: "sec9", StrandID: "st9", Name: "Rizal"},
	}}
	teachers := &mockTeacherReader{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", EmployeeID: "EMP-01", FirstName: "Maria", LastName: "Santos"},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", StudentID: "2026-0001", FirstName: "Juan", LastName: "Dela Cruz"},
		"s2": {ID: "s2", StudentID: "2026-0002", FirstName: "Ana", LastName: "Reyes"},
	}}
	dispatcher := &mockDispatcher{}
	svc := NewSubjectRecordService(repo, subjects, sections, teachers, students, dispatcher, nil, nil)
	return repo, dispatcher, svc
}

func TestSubjectRecordServiceCreate(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()

	record, err := svc.Create(context.Background(), CreateSubjectRecordRequest{
		TeacherID: "t1", SubjectID: "sub1", SectionID: "sec1", Semester: "2nd", SchoolYear: "2026-2027",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Contains(t, repo.records, record.ID)
}

func TestSubjectRecordServiceCreateSubjectStrandMismatch(t *testing.T) {
	_, _, svc := newSubjectRecordFixture()

	_, err := svc.Create(context.Background(), CreateSubjectRecordRequest{
		TeacherID: "t1", SubjectID: "sub1", SectionID: "sec9", Semester: "1st", SchoolYear: "2026-2027",
	})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestSubjectRecordServiceCreateDuplicateOffering(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()
	repo.exists = true

	_, err := svc.Create(context.Background(), CreateSubjectRecordRequest{
		TeacherID: "t1", SubjectID: "sub1", SectionID: "sec1", Semester: "1st", SchoolYear: "2026-2027",
	})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestSubjectRecordServiceUpsertGrade(t *testing.T) {
	repo, dispatcher, svc := newSubjectRecordFixture()

	first := 91.0
	grade, err := svc.UpsertGrade(context.Background(), "sr1", UpsertGradeRequest{
		StudentID:    "s1",
		FirstQuarter: &first,
	}, "t1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", grade.StudentID)
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, []string{models.AuditActionGradeUpsert}, dispatcher.audits)
}

func TestSubjectRecordServiceUpsertGradeNotOwner(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()

	first := 91.0
	_, err := svc.UpsertGrade(context.Background(), "sr1", UpsertGradeRequest{
		StudentID:    "s1",
		FirstQuarter: &first,
	}, "other-teacher", "user-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
	assert.Empty(t, repo.upserts)
}

func TestSubjectRecordServiceUpsertGradeOffRoster(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()

	_, err := svc.UpsertGrade(context.Background(), "sr1", UpsertGradeRequest{
		StudentID: "stranger",
	}, "t1", "user-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
	assert.Empty(t, repo.upserts)
}

func TestSubjectRecordServiceGradeSheetMergesRoster(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()
	first := 85.0
	repo.grades = map[string][]models.StudentGrade{
		"sr1": {{SubjectRecordID: "sr1", StudentID: "s1", FirstQuarter: &first}},
	}

	rows, err := svc.GradeSheet(context.Background(), "sr1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dela Cruz, Juan", rows[0].StudentName)
	require.NotNil(t, rows[0].FirstQuarter)
	assert.Equal(t, 85.0, *rows[0].FirstQuarter)
	assert.Nil(t, rows[1].FirstQuarter)
}

func TestSubjectRecordServiceExportCSV(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()
	first := 85.0
	repo.grades = map[string][]models.StudentGrade{
		"sr1": {{SubjectRecordID: "sr1", StudentID: "s1", FirstQuarter: &first}},
	}

	payload, contentType, err := svc.ExportGradeSheet(context.Background(), "sr1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Student No,Name,1st Quarter"))
	assert.Contains(t, body, "2026-0001")
	assert.Contains(t, body, "85.00")
}

func TestSubjectRecordServiceExportUnknownFormat(t *testing.T) {
	_, _, svc := newSubjectRecordFixture()

	_, _, err := svc.ExportGradeSheet(context.Background(), "sr1", "xlsx")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestSubjectRecordServiceRemoveStudentKeepsGrades(t *testing.T) {
	repo, _, svc := newSubjectRecordFixture()

	require.NoError(t, svc.RemoveStudent(context.Background(), "sr1", "s2"))
	assert.Equal(t, []string{"s2"}, repo.removed)
}

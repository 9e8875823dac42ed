package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	items      map[string]*models.Enrollment
	details    map[string]*models.EnrollmentDetail
	pending    bool
	createErr  error
	approveErr error
	rejectErr  error
	approved   []string
	rejected   []string
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.items[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		cp := *d
		return &cp, nil
	}
	if e, ok := m.items[id]; ok {
		return &models.EnrollmentDetail{Enrollment: *e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsPending(ctx context.Context, studentID, semester, schoolYear string) (bool, error) {
	return m.pending, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.items == nil {
		m.items = make(map[string]*models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "generated"
	}
	cp := *enrollment
	m.items[enrollment.ID] = &cp
	return nil
}

func (m *mockEnrollmentRepo) Approve(ctx context.Context, id string, patch models.StudentEnrollmentPatch) error {
	if m.approveErr != nil {
		return m.approveErr
	}
	m.approved = append(m.approved, id)
	if e, ok := m.items[id]; ok {
		e.Status = models.EnrollmentStatusApproved
		e.SectionID = &patch.SectionID
	}
	return nil
}

func (m *mockEnrollmentRepo) Reject(ctx context.Context, id, reason string) error {
	if m.rejectErr != nil {
		return m.rejectErr
	}
	m.rejected = append(m.rejected, id)
	if e, ok := m.items[id]; ok {
		e.Status = models.EnrollmentStatusRejected
		e.RejectionReason = &reason
	}
	return nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockSectionReader struct {
	sections map[string]*models.Section
}

func (m *mockSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockDispatcher struct {
	notifications []string
	audits        []string
}

func (m *mockDispatcher) QueueNotification(studentID, title, message string) {
	m.notifications = append(m.notifications, title)
}

func (m *mockDispatcher) QueueAudit(log *models.AuditLog) {
	m.audits = append(m.audits, log.Action)
}

func newEnrollmentFixture() (*mockEnrollmentRepo, *mockStudentReader, *mockSectionReader, *mockDispatcher, *EnrollmentService) {
	repo := &mockEnrollmentRepo{
		items: map[string]*models.Enrollment{
			"e1": {ID: "e1", StudentID: "s1", StrandID: "st1", GradeLevel: "11", Semester: "1st", SchoolYear: "2026-2027", Status: models.EnrollmentStatusPending},
		},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", StudentID: "2026-0001", FirstName: "Juan", LastName: "Dela Cruz"},
	}}
	sections := &mockSectionReader{sections: map[string]*models.Section{
		"sec1": {ID: "sec1", StrandID: "st1", Name: "Faraday"},
		"sec2": {ID: "sec2", StrandID: "other", Name: "Mendel"},
	}}
	dispatcher := &mockDispatcher{}
	svc := NewEnrollmentService(repo, students, sections, dispatcher, nil, nil)
	return repo, students, sections, dispatcher, svc
}

func TestEnrollmentServiceSubmit(t *testing.T) {
	repo, _, _, dispatcher, svc := newEnrollmentFixture()

	enrollment, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:  "s1",
		StrandID:   "st1",
		GradeLevel: "11",
		Semester:   "2nd",
		SchoolYear: "2026-2027",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Contains(t, repo.items, enrollment.ID)
	assert.Equal(t, []string{models.AuditActionEnrollmentSubmit}, dispatcher.audits)
}

func TestEnrollmentServiceSubmitRejectsSecondPending(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.pending = true

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:  "s1",
		StrandID:   "st1",
		GradeLevel: "11",
		Semester:   "1st",
		SchoolYear: "2026-2027",
	}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestEnrollmentServiceSubmitUniqueBackstop(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.createErr = fmt.Errorf("create enrollment: %w", database.ErrUniqueViolation)

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:  "s1",
		StrandID:   "st1",
		GradeLevel: "11",
		Semester:   "1st",
		SchoolYear: "2026-2027",
	}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestEnrollmentServiceSubmitUnknownStudent(t *testing.T) {
	_, _, _, _, svc := newEnrollmentFixture()

	_, err := svc.Submit(context.Background(), SubmitEnrollmentRequest{
		StudentID:  "missing",
		StrandID:   "st1",
		GradeLevel: "11",
		Semester:   "1st",
		SchoolYear: "2026-2027",
	}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

func TestEnrollmentServiceApprove(t *testing.T) {
	repo, _, _, dispatcher, svc := newEnrollmentFixture()

	detail, err := svc.Approve(context.Background(), "e1", ApproveEnrollmentRequest{SectionID: "sec1"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, detail.Status)
	assert.Equal(t, []string{"e1"}, repo.approved)
	assert.Equal(t, []string{"Enrollment approved"}, dispatcher.notifications)
	assert.Equal(t, []string{models.AuditActionEnrollmentApprove}, dispatcher.audits)
}

func TestEnrollmentServiceApproveWrongStrandSection(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()

	_, err := svc.Approve(context.Background(), "e1", ApproveEnrollmentRequest{SectionID: "sec2"}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
	assert.Empty(t, repo.approved)
}

func TestEnrollmentServiceApproveTerminal(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.items["e1"].Status = models.EnrollmentStatusRejected

	_, err := svc.Approve(context.Background(), "e1", ApproveEnrollmentRequest{SectionID: "sec1"}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrTerminalStatus.Code, apiErr.Code)
}

func TestEnrollmentServiceApproveLostRace(t *testing.T) {
	repo, _, _, dispatcher, svc := newEnrollmentFixture()
	repo.approveErr = sql.ErrNoRows

	_, err := svc.Approve(context.Background(), "e1", ApproveEnrollmentRequest{SectionID: "sec1"}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrTerminalStatus.Code, apiErr.Code)
	assert.Empty(t, dispatcher.notifications)
}

func TestEnrollmentServiceReject(t *testing.T) {
	repo, _, _, dispatcher, svc := newEnrollmentFixture()

	detail, err := svc.Reject(context.Background(), "e1", RejectEnrollmentRequest{Reason: "incomplete documents"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, detail.Status)
	require.NotNil(t, detail.RejectionReason)
	assert.Equal(t, "incomplete documents", *detail.RejectionReason)
	assert.Equal(t, []string{"e1"}, repo.rejected)
	assert.Equal(t, []string{"Enrollment rejected"}, dispatcher.notifications)
}

func TestEnrollmentServiceRejectTerminal(t *testing.T) {
	repo, _, _, _, svc := newEnrollmentFixture()
	repo.items["e1"].Status = models.EnrollmentStatusApproved

	_, err := svc.Reject(context.Background(), "e1", RejectEnrollmentRequest{Reason: "late"}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrTerminalStatus.Code, apiErr.Code)
}

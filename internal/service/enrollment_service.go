package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsPending(ctx context.Context, studentID, semester, schoolYear string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Approve(ctx context.Context, id string, patch models.StudentEnrollmentPatch) error
	Reject(ctx context.Context, id, reason string) error
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type sideEffectDispatcher interface {
	QueueNotification(studentID, title, message string)
	QueueAudit(log *models.AuditLog)
}

// SubmitEnrollmentRequest is a student's application for a term.
type SubmitEnrollmentRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	StrandID     string  `json:"strand_id" validate:"required"`
	GradeLevel   string  `json:"grade_level" validate:"required,oneof=11 12"`
	Semester     string  `json:"semester" validate:"required,oneof=1st 2nd"`
	SchoolYear   string  `json:"school_year" validate:"required"`
	ClearanceURL *string `json:"clearance_url"`
	GradeCopyURL *string `json:"grade_copy_url"`
}

// ApproveEnrollmentRequest assigns the section during approval.
type ApproveEnrollmentRequest struct {
	SectionID string `json:"section_id" validate:"required"`
}

// RejectEnrollmentRequest records why the application was turned down.
type RejectEnrollmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// EnrollmentService drives the enrollment lifecycle. An application starts
// pending and ends in exactly one of approved or rejected; both outcomes are
// final.
type EnrollmentService struct {
	repo       enrollmentRepository
	students   enrollmentStudentReader
	sections   enrollmentSectionReader
	dispatcher sideEffectDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentReader, sections enrollmentSectionReader, dispatcher sideEffectDispatcher, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, sections: sections, dispatcher: dispatcher, validator: validate, logger: logger}
}

// Submit files a new enrollment application for a term.
func (s *EnrollmentService) Submit(ctx context.Context, req SubmitEnrollmentRequest, actorID string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	pending, err := s.repo.ExistsPending(ctx, req.StudentID, req.Semester, req.SchoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending enrollment")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending enrollment already exists for this term")
	}

	enrollment := &models.Enrollment{
		StudentID:    req.StudentID,
		StrandID:     req.StrandID,
		GradeLevel:   req.GradeLevel,
		Semester:     req.Semester,
		SchoolYear:   req.SchoolYear,
		ClearanceURL: req.ClearanceURL,
		GradeCopyURL: req.GradeCopyURL,
		Status:       models.EnrollmentStatusPending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a pending enrollment already exists for this term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentSubmit,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
	})
	return enrollment, nil
}

// List returns enrollment applications and pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an enrollment application with display fields.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Approve finalizes a pending application: the enrollment flips to approved
// with its section assignment, and the student record picks up the term in
// one transaction. Decided applications cannot be approved again.
func (s *EnrollmentService) Approve(ctx context.Context, id string, req ApproveEnrollmentRequest, actorID string) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approve payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrTerminalStatus, fmt.Sprintf("enrollment already %s", enrollment.Status))
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.StrandID != enrollment.StrandID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section does not belong to the applied strand")
	}

	patch := models.StudentEnrollmentPatch{
		StudentID:  enrollment.StudentID,
		SectionID:  section.ID,
		Semester:   enrollment.Semester,
		SchoolYear: enrollment.SchoolYear,
	}
	if err := s.repo.Approve(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTerminalStatus, "enrollment was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
	}

	s.dispatcher.QueueNotification(enrollment.StudentID, "Enrollment approved",
		fmt.Sprintf("Your enrollment for %s semester %s has been approved. You are assigned to section %s.", enrollment.Semester, enrollment.SchoolYear, section.Name))
	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentApprove,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
		NewValues:  []byte(`{"section_id":"` + section.ID + `"}`),
	})

	return s.Get(ctx, id)
}

// Reject turns down a pending application with a reason the student can see.
func (s *EnrollmentService) Reject(ctx context.Context, id string, req RejectEnrollmentRequest, actorID string) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reject payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrTerminalStatus, fmt.Sprintf("enrollment already %s", enrollment.Status))
	}

	if err := s.repo.Reject(ctx, id, req.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTerminalStatus, "enrollment was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment")
	}

	s.dispatcher.QueueNotification(enrollment.StudentID, "Enrollment rejected",
		fmt.Sprintf("Your enrollment for %s semester %s was rejected: %s", enrollment.Semester, enrollment.SchoolYear, req.Reason))
	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentReject,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
	})

	return s.Get(ctx, id)
}

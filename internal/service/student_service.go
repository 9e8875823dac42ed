package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateContact(ctx context.Context, id, address, email, guardianName, guardianContact string) error
	Delete(ctx context.Context, id string) error
}

type studentAccountRepository interface {
	Create(ctx context.Context, user *models.User) error
	DeleteByLinkedID(ctx context.Context, linkedID string) error
}

type auditDispatcher interface {
	QueueAudit(log *models.AuditLog)
}

// CreateStudentRequest holds payload for registering students. Student
// numbers must not contain embedded whitespace.
type CreateStudentRequest struct {
	StudentID       string     `json:"student_id" validate:"required,min=4,excludesall=0x20"`
	FirstName       string     `json:"first_name" validate:"required"`
	LastName        string     `json:"last_name" validate:"required"`
	MiddleName      string     `json:"middle_name"`
	Suffix          string     `json:"suffix"`
	Sex             string     `json:"sex" validate:"required,oneof=male female"`
	BirthDate       *time.Time `json:"birth_date"`
	Address         string     `json:"address"`
	Email           string     `json:"email" validate:"required,email"`
	GuardianName    string     `json:"guardian_name"`
	GuardianContact string     `json:"guardian_contact"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	StudentID       string     `json:"student_id" validate:"required,min=4,excludesall=0x20"`
	FirstName       string     `json:"first_name" validate:"required"`
	LastName        string     `json:"last_name" validate:"required"`
	MiddleName      string     `json:"middle_name"`
	Suffix          string     `json:"suffix"`
	Sex             string     `json:"sex" validate:"required,oneof=male female"`
	BirthDate       *time.Time `json:"birth_date"`
	Address         string     `json:"address"`
	Email           string     `json:"email" validate:"required,email"`
	GuardianName    string     `json:"guardian_name"`
	GuardianContact string     `json:"guardian_contact"`
}

// UpdateStudentContactRequest is the self-service subset a student can edit.
type UpdateStudentContactRequest struct {
	Address         string `json:"address"`
	Email           string `json:"email" validate:"required,email"`
	GuardianName    string `json:"guardian_name"`
	GuardianContact string `json:"guardian_contact"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo       studentRepository
	accounts   studentAccountRepository
	dispatcher auditDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, accounts studentAccountRepository, dispatcher auditDispatcher, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, accounts: accounts, dispatcher: dispatcher, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentView, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	views := make([]models.StudentView, 0, len(students))
	for _, student := range students {
		views = append(views, student.View())
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return views, pagination, nil
}

// Get returns a student by primary key.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentView, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	view := student.View()
	return &view, nil
}

// GetByStudentID returns a student by the human-facing student number. The
// lookup is case-insensitive because numbers are stored uppercased.
func (s *StudentService) GetByStudentID(ctx context.Context, studentID string) (*models.StudentView, error) {
	student, err := s.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	view := student.View()
	return &view, nil
}

// Create registers a new student together with a login account. The initial
// password is the student number itself; the student is expected to change
// it on first login.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actorID string) (*models.StudentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	studentID := strings.ToUpper(strings.TrimSpace(req.StudentID))
	exists, err := s.repo.ExistsByStudentID(ctx, studentID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateID, "student id already used")
	}

	student := &models.Student{
		StudentID:       studentID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		MiddleName:      req.MiddleName,
		Suffix:          req.Suffix,
		Sex:             req.Sex,
		BirthDate:       req.BirthDate,
		Address:         req.Address,
		Email:           req.Email,
		GuardianName:    req.GuardianName,
		GuardianContact: req.GuardianContact,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateID, "student id already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(studentID), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash initial password")
	}
	account := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FirstName + " " + req.LastName),
		Role:         models.RoleStudent,
		LinkedID:     &student.ID,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already tied to another account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student account")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentCreate,
		Resource:   "student",
		ResourceID: &student.ID,
	})

	view := student.View()
	return &view, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, actorID string) (*models.StudentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	studentID := strings.ToUpper(strings.TrimSpace(req.StudentID))
	exists, err := s.repo.ExistsByStudentID(ctx, studentID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateID, "student id already used")
	}

	student.StudentID = studentID
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.MiddleName = req.MiddleName
	student.Suffix = req.Suffix
	student.Sex = req.Sex
	student.BirthDate = req.BirthDate
	student.Address = req.Address
	student.Email = req.Email
	student.GuardianName = req.GuardianName
	student.GuardianContact = req.GuardianContact
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateID, "student id already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentUpdate,
		Resource:   "student",
		ResourceID: &student.ID,
	})

	view := student.View()
	return &view, nil
}

// UpdateContact lets a student edit their own contact details.
func (s *StudentService) UpdateContact(ctx context.Context, id string, req UpdateStudentContactRequest) (*models.StudentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.UpdateContact(ctx, id, req.Address, req.Email, req.GuardianName, req.GuardianContact); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contact details")
	}
	return s.Get(ctx, id)
}

// SetStatus updates a student's standing, e.g. to transfer-out or graduated.
// Roster membership and past grades are left untouched.
func (s *StudentService) SetStatus(ctx context.Context, id string, status models.StudentStatus, actorID string) (*models.StudentView, error) {
	switch status {
	case models.StudentStatusEnrolled, models.StudentStatusTransferIn, models.StudentStatusTransferOut,
		models.StudentStatusIncomplete, models.StudentStatusGraduated:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	student.Status = &status
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentUpdate,
		Resource:   "student",
		ResourceID: &student.ID,
		NewValues:  []byte(`{"status":"` + string(status) + `"}`),
	})

	view := student.View()
	return &view, nil
}

// DeleteByStudentID removes the single student whose number matches, along
// with their login account. The number uniquely identifies one row, so the
// delete can never sweep up more than one record.
func (s *StudentService) DeleteByStudentID(ctx context.Context, studentID string, actorID string) error {
	student, err := s.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.Delete(ctx, student.ID); err != nil {
		if errors.Is(err, database.ErrForeignKeyViolation) {
			return appErrors.Clone(appErrors.ErrConflict, "student has enrollment or grade history and cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if err := s.accounts.DeleteByLinkedID(ctx, student.ID); err != nil {
		s.logger.Warn("failed to delete linked student account", zap.String("student_id", student.ID), zap.Error(err))
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionStudentDelete,
		Resource:   "student",
		ResourceID: &student.ID,
		OldValues:  []byte(`{"student_id":"` + student.StudentID + `"}`),
	})
	return nil
}

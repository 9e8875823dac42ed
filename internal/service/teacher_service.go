package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.Teacher, error)
	ExistsByEmployeeID(ctx context.Context, employeeID string, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

// CreateTeacherRequest holds payload for registering teachers. Employee
// numbers must not contain embedded whitespace.
type CreateTeacherRequest struct {
	EmployeeID          string  `json:"employee_id" validate:"required,min=4,excludesall=0x20"`
	FirstName           string  `json:"first_name" validate:"required"`
	LastName            string  `json:"last_name" validate:"required"`
	Email               string  `json:"email" validate:"required,email"`
	Phone               string  `json:"phone"`
	DesignatedSectionID *string `json:"designated_section_id"`
}

// UpdateTeacherRequest holds payload for updating teachers.
type UpdateTeacherRequest struct {
	EmployeeID          string  `json:"employee_id" validate:"required,min=4,excludesall=0x20"`
	FirstName           string  `json:"first_name" validate:"required"`
	LastName            string  `json:"last_name" validate:"required"`
	Email               string  `json:"email" validate:"required,email"`
	Phone               string  `json:"phone"`
	DesignatedSectionID *string `json:"designated_section_id"`
	Active              bool    `json:"active"`
}

// TeacherService handles teacher use-cases.
type TeacherService struct {
	repo       teacherRepository
	accounts   studentAccountRepository
	dispatcher auditDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, accounts studentAccountRepository, dispatcher auditDispatcher, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, accounts: accounts, dispatcher: dispatcher, validator: validate, logger: logger}
}

// List returns teachers and pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
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
	return teachers, pagination, nil
}

// Get returns a teacher by primary key.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher with a login account. The initial password
// is the employee number.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest, actorID string) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	employeeID := strings.ToUpper(strings.TrimSpace(req.EmployeeID))
	exists, err := s.repo.ExistsByEmployeeID(ctx, employeeID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate employee id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateID, "employee id already used")
	}

	teacher := &models.Teacher{
		EmployeeID:          employeeID,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		Phone:               req.Phone,
		DesignatedSectionID: req.DesignatedSectionID,
		Active:              true,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateID, "employee id already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(employeeID), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash initial password")
	}
	account := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FirstName + " " + req.LastName),
		Role:         models.RoleTeacher,
		LinkedID:     &teacher.ID,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already tied to another account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher account")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionTeacherCreate,
		Resource:   "teacher",
		ResourceID: &teacher.ID,
	})
	return teacher, nil
}

// Update modifies an existing teacher record.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest, actorID string) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	employeeID := strings.ToUpper(strings.TrimSpace(req.EmployeeID))
	exists, err := s.repo.ExistsByEmployeeID(ctx, employeeID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate employee id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateID, "employee id already used")
	}

	teacher.EmployeeID = employeeID
	teacher.FirstName = req.FirstName
	teacher.LastName = req.LastName
	teacher.Email = req.Email
	teacher.Phone = req.Phone
	teacher.DesignatedSectionID = req.DesignatedSectionID
	teacher.Active = req.Active
	if err := s.repo.Update(ctx, teacher); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateID, "employee id already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionTeacherUpdate,
		Resource:   "teacher",
		ResourceID: &teacher.ID,
	})
	return teacher, nil
}

// DeleteByEmployeeID removes the single teacher whose employee number
// matches, along with their login account.
func (s *TeacherService) DeleteByEmployeeID(ctx context.Context, employeeID string, actorID string) error {
	teacher, err := s.repo.FindByEmployeeID(ctx, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if err := s.repo.Delete(ctx, teacher.ID); err != nil {
		if errors.Is(err, database.ErrForeignKeyViolation) {
			return appErrors.Clone(appErrors.ErrConflict, "teacher still owns subject records and cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	if err := s.accounts.DeleteByLinkedID(ctx, teacher.ID); err != nil {
		s.logger.Warn("failed to delete linked teacher account", zap.String("teacher_id", teacher.ID), zap.Error(err))
	}

	s.dispatcher.QueueAudit(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionTeacherDelete,
		Resource:   "teacher",
		ResourceID: &teacher.ID,
		OldValues:  []byte(`{"employee_id":"` + teacher.EmployeeID + `"}`),
	})
	return nil
}

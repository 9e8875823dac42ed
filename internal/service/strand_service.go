package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type strandRepository interface {
	List(ctx context.Context, filter models.StrandFilter) ([]models.Strand, int, error)
	FindByID(ctx context.Context, id string) (*models.Strand, error)
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
	Create(ctx context.Context, strand *models.Strand) error
	Update(ctx context.Context, strand *models.Strand) error
	Delete(ctx context.Context, id string) error
}

type sectionCounter interface {
	CountByStrand(ctx context.Context, strandID string) (int, error)
}

// StrandRequest holds payload for creating or updating strands.
type StrandRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// StrandService handles academic strand use-cases.
type StrandService struct {
	repo      strandRepository
	sections  sectionCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStrandService constructs the strand service.
func NewStrandService(repo strandRepository, sections sectionCounter, validate *validator.Validate, logger *zap.Logger) *StrandService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StrandService{repo: repo, sections: sections, validator: validate, logger: logger}
}

// List returns strands and pagination metadata.
func (s *StrandService) List(ctx context.Context, filter models.StrandFilter) ([]models.Strand, *models.Pagination, error) {
	strands, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list strands")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return strands, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a strand by ID.
func (s *StrandService) Get(ctx context.Context, id string) (*models.Strand, error) {
	strand, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	return strand, nil
}

// Create adds a new strand.
func (s *StrandService) Create(ctx context.Context, req StrandRequest) (*models.Strand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid strand payload")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate strand name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "strand name already used")
	}
	strand := &models.Strand{Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, strand); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "strand name already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create strand")
	}
	return strand, nil
}

// Update modifies an existing strand.
func (s *StrandService) Update(ctx context.Context, id string, req StrandRequest) (*models.Strand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid strand payload")
	}
	strand, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate strand name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "strand name already used")
	}
	strand.Name = req.Name
	strand.Description = req.Description
	if err := s.repo.Update(ctx, strand); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "strand name already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update strand")
	}
	return strand, nil
}

// Delete removes a strand. Strands that still own sections cannot be
// removed.
func (s *StrandService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	count, err := s.sections.CountByStrand(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check strand sections")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "strand still has sections")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrForeignKeyViolation) {
			return appErrors.Clone(appErrors.ErrConflict, "strand is still referenced")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete strand")
	}
	return nil
}

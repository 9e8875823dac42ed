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

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ExistsByName(ctx context.Context, strandID, name, excludeID string) (bool, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) error
}

type strandReader interface {
	FindByID(ctx context.Context, id string) (*models.Strand, error)
}

// SectionRequest holds payload for creating or updating sections.
type SectionRequest struct {
	StrandID    string `json:"strand_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	AdviserName string `json:"adviser_name"`
}

// SectionService handles section use-cases. Section names are unique within
// a strand; two strands may both have a "Newton".
type SectionService struct {
	repo      sectionRepository
	strands   strandReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs the section service.
func NewSectionService(repo sectionRepository, strands strandReader, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, strands: strands, validator: validate, logger: logger}
}

// List returns sections and pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a section by ID.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// Create adds a new section under a strand.
func (s *SectionService) Create(ctx context.Context, req SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.strands.FindByID(ctx, req.StrandID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	exists, err := s.repo.ExistsByName(ctx, req.StrandID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate section name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "section name already used in this strand")
	}
	section := &models.Section{StrandID: req.StrandID, Name: req.Name, AdviserName: optionalString(req.AdviserName)}
	if err := s.repo.Create(ctx, section); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "section name already used in this strand")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return section, nil
}

// Update modifies an existing section.
func (s *SectionService) Update(ctx context.Context, id string, req SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	exists, err := s.repo.ExistsByName(ctx, req.StrandID, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate section name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "section name already used in this strand")
	}
	section.StrandID = req.StrandID
	section.Name = req.Name
	section.AdviserName = optionalString(req.AdviserName)
	if err := s.repo.Update(ctx, section); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "section name already used in this strand")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// Delete removes a section.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrForeignKeyViolation) {
			return appErrors.Clone(appErrors.ErrConflict, "section is still referenced by students or subject records")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}

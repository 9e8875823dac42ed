package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
)

// SectionRepository manages persistence for sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections with their strand name.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	base := "FROM sections sec LEFT JOIN strands st ON st.id = sec.strand_id"
	var conditions []string
	var args []interface{}

	if filter.StrandID != "" {
		conditions = append(conditions, fmt.Sprintf("sec.strand_id = $%d", len(args)+1))
		args = append(args, filter.StrandID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(sec.name) LIKE $%d", len(args)+1))
		args = append(args, likePattern(filter.Search))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "sec.name",
		"created_at": "sec.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "sec.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sec.id, sec.strand_id, sec.name, sec.adviser_name, sec.created_at, sec.updated_at,
        st.name AS strand_name %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, column, order, size, offset)

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID fetches a section by primary key.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, strand_id, name, adviser_name, created_at, updated_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ExistsByName checks whether a section with the name already exists within
// the strand, optionally excluding an ID. The UNIQUE(strand_id, name)
// constraint backstops this check against concurrent creates.
func (r *SectionRepository) ExistsByName(ctx context.Context, strandID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM sections WHERE strand_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{strandID, strings.TrimSpace(name)}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section name: %w", err)
	}
	return true, nil
}

// Create inserts a new section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, strand_id, name, adviser_name, created_at, updated_at)
        VALUES (:id, :strand_id, :name, :adviser_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", database.WrapError(err))
	}
	return nil
}

// Update modifies an existing section.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET strand_id = :strand_id, name = :name, adviser_name = :adviser_name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", database.WrapError(err))
	}
	return nil
}

// Delete removes the section row by primary key.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sections WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete section: %w", database.WrapError(err))
	}
	return nil
}

// Count returns the number of section records.
func (r *SectionRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sections"); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return total, nil
}

// CountByStrand returns the number of sections owned by a strand.
func (r *SectionRepository) CountByStrand(ctx context.Context, strandID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sections WHERE strand_id = $1", strandID); err != nil {
		return 0, fmt.Errorf("count sections by strand: %w", err)
	}
	return total, nil
}

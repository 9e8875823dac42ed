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

// StrandRepository manages persistence for academic strands.
type StrandRepository struct {
	db *sqlx.DB
}

// NewStrandRepository constructs a StrandRepository.
func NewStrandRepository(db *sqlx.DB) *StrandRepository {
	return &StrandRepository{db: db}
}

// List returns strands matching the provided filters.
func (r *StrandRepository) List(ctx context.Context, filter models.StrandFilter) ([]models.Strand, int, error) {
	base := "FROM strands"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, likePattern(filter.Search))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	column := "created_at"
	if filter.SortBy == "name" {
		column = "name"
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

	query := fmt.Sprintf("SELECT id, name, description, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base+clause, column, order, size, offset)

	var strands []models.Strand
	if err := r.db.SelectContext(ctx, &strands, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list strands: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count strands: %w", err)
	}
	return strands, total, nil
}

// FindByID fetches a strand by primary key.
func (r *StrandRepository) FindByID(ctx context.Context, id string) (*models.Strand, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM strands WHERE id = $1`
	var strand models.Strand
	if err := r.db.GetContext(ctx, &strand, query, id); err != nil {
		return nil, err
	}
	return &strand, nil
}

// ExistsByName checks if a strand with the given name exists, optionally
// excluding an ID.
func (r *StrandRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM strands WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{strings.TrimSpace(name)}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check strand name: %w", err)
	}
	return true, nil
}

// Create inserts a new strand.
func (r *StrandRepository) Create(ctx context.Context, strand *models.Strand) error {
	if strand.ID == "" {
		strand.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if strand.CreatedAt.IsZero() {
		strand.CreatedAt = now
	}
	strand.UpdatedAt = now
	const query = `INSERT INTO strands (id, name, description, created_at, updated_at)
        VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, strand); err != nil {
		return fmt.Errorf("create strand: %w", database.WrapError(err))
	}
	return nil
}

// Update modifies an existing strand.
func (r *StrandRepository) Update(ctx context.Context, strand *models.Strand) error {
	strand.UpdatedAt = time.Now().UTC()
	const query = `UPDATE strands SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, strand); err != nil {
		return fmt.Errorf("update strand: %w", database.WrapError(err))
	}
	return nil
}

// Delete removes the strand row by primary key.
func (r *StrandRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM strands WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete strand: %w", database.WrapError(err))
	}
	return nil
}

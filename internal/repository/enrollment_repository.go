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

// EnrollmentRepository handles persistence of enrollment requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria, newest first by
// default.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN strands st ON st.id = e.strand_id
LEFT JOIN sections sec ON sec.id = e.section_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("e.school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("e.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d)", n, n))
		args = append(args, likePattern(filter.Search))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "s.last_name",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "e.created_at"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.strand_id, e.grade_level, e.semester, e.school_year,
        e.clearance_url, e.grade_copy_url, e.status, e.section_id, e.rejection_reason, e.decided_at, e.created_at, e.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.student_id AS student_number,
        st.name AS strand_name, sec.name AS section_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, column, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, strand_id, grade_level, semester, school_year, clearance_url, grade_copy_url,
        status, section_id, rejection_reason, decided_at, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.strand_id, e.grade_level, e.semester, e.school_year,
        e.clearance_url, e.grade_copy_url, e.status, e.section_id, e.rejection_reason, e.decided_at, e.created_at, e.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.student_id AS student_number,
        st.name AS strand_name, sec.name AS section_name
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN strands st ON st.id = e.strand_id
        LEFT JOIN sections sec ON sec.id = e.section_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsPending checks if the student already has a pending enrollment for
// the term.
func (r *EnrollmentRepository) ExistsPending(ctx context.Context, studentID, semester, schoolYear string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND semester = $2 AND school_year = $3 AND status = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, semester, schoolYear, models.EnrollmentStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment request.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollments (id, student_id, strand_id, grade_level, semester, school_year,
        clearance_url, grade_copy_url, status, section_id, rejection_reason, decided_at, created_at, updated_at)
        VALUES (:id, :student_id, :strand_id, :grade_level, :semester, :school_year,
        :clearance_url, :grade_copy_url, :status, :section_id, :rejection_reason, :decided_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", database.WrapError(err))
	}
	return nil
}

// Approve marks a pending enrollment approved and patches the student's
// denormalized enrollment pointers in the same transaction. The WHERE guard
// on status makes concurrent approvals of the same enrollment lose cleanly:
// the second one sees zero rows and reports the terminal state.
func (r *EnrollmentRepository) Approve(ctx context.Context, id string, patch models.StudentEnrollmentPatch) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET status = $2, section_id = $3, decided_at = $4, updated_at = $4 WHERE id = $1 AND status = $5`,
		id, models.EnrollmentStatusApproved, patch.SectionID, now, models.EnrollmentStatusPending)
	if err != nil {
		return fmt.Errorf("approve enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET status = $2, enrolled_for_section_id = $3, enrolled_for_semester = $4, enrolled_for_school_year = $5, updated_at = $6 WHERE id = $1`,
		patch.StudentID, models.StudentStatusEnrolled, patch.SectionID, patch.Semester, patch.SchoolYear, now); err != nil {
		return fmt.Errorf("patch student enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve: %w", err)
	}
	return nil
}

// Reject marks a pending enrollment rejected with the stored reason. The
// same status guard applies as for Approve.
func (r *EnrollmentRepository) Reject(ctx context.Context, id, reason string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET status = $2, rejection_reason = $3, decided_at = $4, updated_at = $4 WHERE id = $1 AND status = $5`,
		id, models.EnrollmentStatusRejected, reason, now, models.EnrollmentStatusPending)
	if err != nil {
		return fmt.Errorf("reject enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of enrollments with the given status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, status models.EnrollmentStatus) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments WHERE status = $1", status); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

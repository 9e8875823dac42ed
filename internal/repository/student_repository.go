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

const studentColumns = `id, student_id, first_name, last_name, middle_name, suffix, sex, birth_date, address, email,
        guardian_name, guardian_contact, status, enrolled_for_section_id, enrolled_for_semester, enrolled_for_school_year,
        created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students"
	var conditions []string
	var args []interface{}

	switch filter.Status {
	case "":
	case string(models.StudentStatusNotSet):
		conditions = append(conditions, "status IS NULL")
	default:
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("enrolled_for_section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(student_id) LIKE $%d)", n, n, n))
		args = append(args, likePattern(filter.Search))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"last_name":  "last_name",
		"student_id": "student_id",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base+clause, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by its primary key.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByStudentID fetches a student by the human-facing student number.
// Student numbers are stored uppercase so the lookup is case-insensitive.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE student_id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, strings.ToUpper(strings.TrimSpace(studentID))); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByStudentID checks if a student with the given number exists,
// optionally excluding an ID.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE student_id = $1"
	args := []interface{}{strings.ToUpper(strings.TrimSpace(studentID))}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new student record. The student number is normalized to
// uppercase; the UNIQUE constraint on student_id backstops the existence
// check done at the service layer.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.StudentID = strings.ToUpper(strings.TrimSpace(student.StudentID))
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_id, first_name, last_name, middle_name, suffix, sex, birth_date, address, email,
        guardian_name, guardian_contact, status, enrolled_for_section_id, enrolled_for_semester, enrolled_for_school_year, created_at, updated_at)
        VALUES (:id, :student_id, :first_name, :last_name, :middle_name, :suffix, :sex, :birth_date, :address, :email,
        :guardian_name, :guardian_contact, :status, :enrolled_for_section_id, :enrolled_for_semester, :enrolled_for_school_year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", database.WrapError(err))
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.StudentID = strings.ToUpper(strings.TrimSpace(student.StudentID))
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_id = :student_id, first_name = :first_name, last_name = :last_name,
        middle_name = :middle_name, suffix = :suffix, sex = :sex, birth_date = :birth_date, address = :address, email = :email,
        guardian_name = :guardian_name, guardian_contact = :guardian_contact, status = :status,
        enrolled_for_section_id = :enrolled_for_section_id, enrolled_for_semester = :enrolled_for_semester,
        enrolled_for_school_year = :enrolled_for_school_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", database.WrapError(err))
	}
	return nil
}

// UpdateContact modifies only the self-service subset of fields.
func (r *StudentRepository) UpdateContact(ctx context.Context, id, address, email, guardianName, guardianContact string) error {
	const query = `UPDATE students SET address = $2, email = $3, guardian_name = $4, guardian_contact = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, address, email, guardianName, guardianContact, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student contact: %w", err)
	}
	return nil
}

// Delete removes the student row by primary key. Exactly one row is affected
// because the caller resolves the human-facing ID to a primary key first.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM students WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete student: %w", database.WrapError(err))
	}
	return nil
}

// Count returns the number of student records.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

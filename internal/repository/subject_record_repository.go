package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
)

// SubjectRecordRepository manages class offerings and their grade rows.
type SubjectRecordRepository struct {
	db *sqlx.DB
}

// NewSubjectRecordRepository constructs the repository.
func NewSubjectRecordRepository(db *sqlx.DB) *SubjectRecordRepository {
	return &SubjectRecordRepository{db: db}
}

// List returns subject records with subject, section and teacher names.
func (r *SubjectRecordRepository) List(ctx context.Context, filter models.SubjectRecordFilter) ([]models.SubjectRecordDetail, int, error) {
	base := `FROM subject_records sr
LEFT JOIN subjects sub ON sub.id = sr.subject_id
LEFT JOIN sections sec ON sec.id = sr.section_id
LEFT JOIN teachers t ON t.id = sr.teacher_id`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("sr.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("sr.school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(sr.student_ids)", len(args)+1))
		args = append(args, filter.StudentID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT sr.id, sr.teacher_id, sr.subject_id, sr.section_id, sr.semester, sr.school_year,
        sr.student_ids, sr.created_at, sr.updated_at,
        sub.name AS subject_name, sec.name AS section_name,
        t.first_name || ' ' || t.last_name AS teacher_name
        %s ORDER BY sr.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var records []models.SubjectRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subject records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subject records: %w", err)
	}
	return records, total, nil
}

// FindByID fetches a subject record by primary key.
func (r *SubjectRecordRepository) FindByID(ctx context.Context, id string) (*models.SubjectRecord, error) {
	const query = `SELECT id, teacher_id, subject_id, section_id, semester, school_year, student_ids, created_at, updated_at
        FROM subject_records WHERE id = $1`
	var record models.SubjectRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindDetailByID fetches a subject record with resolved names.
func (r *SubjectRecordRepository) FindDetailByID(ctx context.Context, id string) (*models.SubjectRecordDetail, error) {
	const query = `SELECT sr.id, sr.teacher_id, sr.subject_id, sr.section_id, sr.semester, sr.school_year,
        sr.student_ids, sr.created_at, sr.updated_at,
        sub.name AS subject_name, sec.name AS section_name,
        t.first_name || ' ' || t.last_name AS teacher_name
        FROM subject_records sr
        LEFT JOIN subjects sub ON sub.id = sr.subject_id
        LEFT JOIN sections sec ON sec.id = sr.section_id
        LEFT JOIN teachers t ON t.id = sr.teacher_id
        WHERE sr.id = $1`
	var detail models.SubjectRecordDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks whether an offering for the same subject, section and term
// already exists.
func (r *SubjectRecordRepository) Exists(ctx context.Context, subjectID, sectionID, semester, schoolYear string) (bool, error) {
	const query = `SELECT 1 FROM subject_records WHERE subject_id = $1 AND section_id = $2 AND semester = $3 AND school_year = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectID, sectionID, semester, schoolYear); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject record: %w", err)
	}
	return true, nil
}

// Create inserts a new subject record.
func (r *SubjectRecordRepository) Create(ctx context.Context, record *models.SubjectRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.StudentIDs == nil {
		record.StudentIDs = pq.StringArray{}
	}
	const query = `INSERT INTO subject_records (id, teacher_id, subject_id, section_id, semester, school_year, student_ids, created_at, updated_at)
        VALUES (:id, :teacher_id, :subject_id, :section_id, :semester, :school_year, :student_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create subject record: %w", database.WrapError(err))
	}
	return nil
}

// AddStudent appends the student to the roster if not already present.
func (r *SubjectRecordRepository) AddStudent(ctx context.Context, recordID, studentID string) error {
	const query = `UPDATE subject_records
        SET student_ids = array_append(student_ids, $2), updated_at = $3
        WHERE id = $1 AND NOT ($2 = ANY(student_ids))`
	if _, err := r.db.ExecContext(ctx, query, recordID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add student to roster: %w", err)
	}
	return nil
}

// RemoveStudent drops the student from the roster. Grade rows are kept so a
// re-added student does not lose recorded marks.
func (r *SubjectRecordRepository) RemoveStudent(ctx context.Context, recordID, studentID string) error {
	const query = `UPDATE subject_records
        SET student_ids = array_remove(student_ids, $2), updated_at = $3
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, recordID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove student from roster: %w", err)
	}
	return nil
}

// Delete removes the record and its grade rows in one transaction.
func (r *SubjectRecordRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete subject record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_grades WHERE subject_record_id = $1`, id); err != nil {
		return fmt.Errorf("delete grades: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subject record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete subject record: %w", err)
	}
	return nil
}

// UpsertGrade writes the grade row for a student in an offering. Only the
// row for that single student changes.
func (r *SubjectRecordRepository) UpsertGrade(ctx context.Context, grade *models.StudentGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO student_grades (id, subject_record_id, student_id, first_quarter, second_quarter, final_grade, rating, remarks, created_at, updated_at)
        VALUES (:id, :subject_record_id, :student_id, :first_quarter, :second_quarter, :final_grade, :rating, :remarks, :created_at, :updated_at)
        ON CONFLICT (subject_record_id, student_id) DO UPDATE
        SET first_quarter = EXCLUDED.first_quarter, second_quarter = EXCLUDED.second_quarter,
        final_grade = EXCLUDED.final_grade, rating = EXCLUDED.rating, remarks = EXCLUDED.remarks,
        updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// ListGrades returns all grade rows for an offering.
func (r *SubjectRecordRepository) ListGrades(ctx context.Context, recordID string) ([]models.StudentGrade, error) {
	const query = `SELECT id, subject_record_id, student_id, first_quarter, second_quarter, final_grade, rating, remarks, created_at, updated_at
        FROM student_grades WHERE subject_record_id = $1 ORDER BY created_at ASC`
	var grades []models.StudentGrade
	if err := r.db.SelectContext(ctx, &grades, query, recordID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// FindGrade returns the grade row for a single student in an offering.
func (r *SubjectRecordRepository) FindGrade(ctx context.Context, recordID, studentID string) (*models.StudentGrade, error) {
	const query = `SELECT id, subject_record_id, student_id, first_quarter, second_quarter, final_grade, rating, remarks, created_at, updated_at
        FROM student_grades WHERE subject_record_id = $1 AND student_id = $2`
	var grade models.StudentGrade
	if err := r.db.GetContext(ctx, &grade, query, recordID, studentID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// ListGradesForStudent returns a student's grade rows across offerings,
// optionally narrowed to a term.
func (r *SubjectRecordRepository) ListGradesForStudent(ctx context.Context, studentID, semester, schoolYear string) ([]models.StudentGradeDetail, error) {
	base := `FROM student_grades g
JOIN subject_records sr ON sr.id = g.subject_record_id
LEFT JOIN subjects sub ON sub.id = sr.subject_id`
	conditions := []string{"g.student_id = $1"}
	args := []interface{}{studentID}

	if semester != "" {
		conditions = append(conditions, fmt.Sprintf("sr.semester = $%d", len(args)+1))
		args = append(args, semester)
	}
	if schoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("sr.school_year = $%d", len(args)+1))
		args = append(args, schoolYear)
	}

	query := fmt.Sprintf(`SELECT g.id, g.subject_record_id, g.student_id, g.first_quarter, g.second_quarter, g.final_grade,
        g.rating, g.remarks, g.created_at, g.updated_at,
        sub.name AS subject_name, sr.semester, sr.school_year
        %s WHERE %s ORDER BY sr.school_year DESC, sr.semester ASC`, base, strings.Join(conditions, " AND "))

	var grades []models.StudentGradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "first_name", "last_name", "middle_name", "suffix", "sex", "birth_date", "address", "email",
		"guardian_name", "guardian_contact", "status", "enrolled_for_section_id", "enrolled_for_semester", "enrolled_for_school_year",
		"created_at", "updated_at",
	})
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().
		AddRow("s1", "2026-0001", "Juan", "Dela Cruz", "", "", "male", nil, "", "juan@example.com",
			"", "", nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, student_id").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListNotSetStatus(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("WHERE status IS NULL").
		WillReturnRows(studentRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE status IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.StudentFilter{Status: string(models.StudentStatusNotSet)})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByStudentIDNormalizes(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().
		AddRow("s1", "2026-0001A", "Juan", "Dela Cruz", "", "", "male", nil, "", "juan@example.com",
			"", "", nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("FROM students WHERE student_id").
		WithArgs("2026-0001A").
		WillReturnRows(rows)

	student, err := repo.FindByStudentID(context.Background(), "  2026-0001a ")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByStudentIDNoRows(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM students").
		WithArgs("2026-0002").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByStudentID(context.Background(), "2026-0002", "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateNormalizesNumber(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{StudentID: "2026-0001a", FirstName: "Juan", LastName: "Dela Cruz", Sex: "male", Email: "juan@example.com"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.Equal(t, "2026-0001A", student.StudentID)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListEscapesSearchWildcards(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("LOWER\\(first_name\\) LIKE").
		WithArgs(`%100\%\_a%`).
		WillReturnRows(studentRows())
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(`%100\%\_a%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.StudentFilter{Search: "100%_a"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_student_id_key"})

	student := &models.Student{StudentID: "2026-0001", FirstName: "Juan", LastName: "Dela Cruz", Sex: "male"}
	err := repo.Create(context.Background(), student)
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrUniqueViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteForeignKeyViolation(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students").
		WithArgs("s1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "enrollments_student_id_fkey"})

	err := repo.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrForeignKeyViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

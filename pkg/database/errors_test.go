package database

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	unique := WrapError(&pq.Error{Code: "23505", Constraint: "students_student_id_key"})
	assert.True(t, errors.Is(unique, ErrUniqueViolation))
	assert.Contains(t, unique.Error(), "students_student_id_key")

	fk := WrapError(&pq.Error{Code: "23503", Constraint: "enrollments_student_id_fkey"})
	assert.True(t, errors.Is(fk, ErrForeignKeyViolation))

	other := errors.New("connection reset")
	assert.Equal(t, other, WrapError(other))
	assert.Nil(t, WrapError(nil))
}

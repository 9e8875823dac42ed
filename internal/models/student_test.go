package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentDisplayStatus(t *testing.T) {
	var student Student
	assert.Equal(t, StudentStatusNotSet, student.DisplayStatus())

	empty := StudentStatus("")
	student.Status = &empty
	assert.Equal(t, StudentStatusNotSet, student.DisplayStatus())

	graduated := StudentStatusGraduated
	student.Status = &graduated
	assert.Equal(t, StudentStatusGraduated, student.DisplayStatus())
}

func TestStudentViewResolvesStatus(t *testing.T) {
	student := Student{ID: "s1", StudentID: "2026-0001"}
	view := student.View()
	assert.Equal(t, StudentStatusNotSet, view.Status)

	payload, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "not-set", decoded["status"])
}

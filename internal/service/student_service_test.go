package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type mockStudentRepo struct {
	items       map[string]*models.Student
	numberIndex map[string]string
	deleted     []string
	createErr   error
	deleteErr   error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	key := strings.ToUpper(strings.TrimSpace(studentID))
	if id, ok := m.numberIndex[key]; ok {
		return m.FindByID(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByStudentID(ctx context.Context, studentID string, excludeID string) (bool, error) {
	if owner, ok := m.numberIndex[strings.ToUpper(strings.TrimSpace(studentID))]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.items == nil {
		m.items = make(map[string]*models.Student)
	}
	if m.numberIndex == nil {
		m.numberIndex = make(map[string]string)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	cp := *student
	m.items[student.ID] = &cp
	m.numberIndex[student.StudentID] = student.ID
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) UpdateContact(ctx context.Context, id, address, email, guardianName, guardianContact string) error {
	if s, ok := m.items[id]; ok {
		s.Address = address
		s.Email = email
		s.GuardianName = guardianName
		s.GuardianContact = guardianContact
	}
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockAccountRepo struct {
	created       []*models.User
	deletedLinked []string
	deleteErr     error
}

func (m *mockAccountRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "account-generated"
	}
	m.created = append(m.created, user)
	return nil
}

func (m *mockAccountRepo) DeleteByLinkedID(ctx context.Context, linkedID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedLinked = append(m.deletedLinked, linkedID)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	accounts := &mockAccountRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewStudentService(repo, accounts, dispatcher, nil, nil)

	view, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentID: "2026-0001a",
		FirstName: "Juan",
		LastName:  "Dela Cruz",
		Sex:       "male",
		Email:     "juan@example.com",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-0001A", view.StudentID)

	require.Len(t, accounts.created, 1)
	account := accounts.created[0]
	assert.Equal(t, models.RoleStudent, account.Role)
	require.NotNil(t, account.LinkedID)
	assert.Equal(t, view.ID, *account.LinkedID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("2026-0001A")))
	assert.Equal(t, []string{models.AuditActionStudentCreate}, dispatcher.audits)
}

func TestStudentServiceCreateDuplicateNumber(t *testing.T) {
	repo := &mockStudentRepo{numberIndex: map[string]string{"2026-0001": "other"}}
	svc := NewStudentService(repo, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentID: "2026-0001",
		FirstName: "Juan",
		LastName:  "Dela Cruz",
		Sex:       "male",
		Email:     "juan@example.com",
	}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrDuplicateID.Code, apiErr.Code)
}

func TestStudentServiceCreateRejectsMalformedNumber(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	for _, studentID := range []string{"AB 123", "123"} {
		_, err := svc.Create(context.Background(), CreateStudentRequest{
			StudentID: studentID,
			FirstName: "Juan",
			LastName:  "Dela Cruz",
			Sex:       "male",
			Email:     "juan@example.com",
		}, "admin-1")
		require.Error(t, err, studentID)
		var apiErr *appErrors.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
	}
	assert.Empty(t, repo.items)
}

func TestStudentServiceCreateUniqueBackstop(t *testing.T) {
	repo := &mockStudentRepo{createErr: fmt.Errorf("create student: %w", database.ErrUniqueViolation)}
	svc := NewStudentService(repo, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentID: "2026-0001",
		FirstName: "Juan",
		LastName:  "Dela Cruz",
		Sex:       "male",
		Email:     "juan@example.com",
	}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrDuplicateID.Code, apiErr.Code)
}

func TestStudentServiceCreateInvalidSex(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentID: "2026-0001",
		FirstName: "Juan",
		LastName:  "Dela Cruz",
		Sex:       "other",
		Email:     "juan@example.com",
	}, "admin-1")
	require.Error(t, err)
}

func TestStudentServiceGetReportsNotSetStatus(t *testing.T) {
	legacy := models.StudentStatus("")
	repo := &mockStudentRepo{items: map[string]*models.Student{
		"s1": {ID: "s1", StudentID: "2026-0001"},
		"s2": {ID: "s2", StudentID: "2026-0002", Status: &legacy},
	}}
	svc := NewStudentService(repo, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	for _, id := range []string{"s1", "s2"} {
		view, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.StudentStatusNotSet, view.Status, id)
	}
}

func TestStudentServiceSetStatus(t *testing.T) {
	repo := &mockStudentRepo{items: map[string]*models.Student{
		"s1": {ID: "s1", StudentID: "2026-0001", FirstName: "Juan", LastName: "Dela Cruz"},
	}}
	dispatcher := &mockDispatcher{}
	svc := NewStudentService(repo, &mockAccountRepo{}, dispatcher, nil, nil)

	view, err := svc.SetStatus(context.Background(), "s1", models.StudentStatusGraduated, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusGraduated, view.Status)

	_, err = svc.SetStatus(context.Background(), "s1", models.StudentStatus("expelled"), "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestStudentServiceDeleteByStudentID(t *testing.T) {
	repo := &mockStudentRepo{
		items: map[string]*models.Student{
			"s1": {ID: "s1", StudentID: "2026-0001", FirstName: "Juan", LastName: "Dela Cruz"},
		},
		numberIndex: map[string]string{"2026-0001": "s1"},
	}
	accounts := &mockAccountRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewStudentService(repo, accounts, dispatcher, nil, nil)

	require.NoError(t, svc.DeleteByStudentID(context.Background(), "2026-0001", "admin-1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
	assert.Equal(t, []string{"s1"}, accounts.deletedLinked)
	assert.Equal(t, []string{models.AuditActionStudentDelete}, dispatcher.audits)
}

func TestStudentServiceDeleteAccountFailureIsBestEffort(t *testing.T) {
	repo := &mockStudentRepo{
		items: map[string]*models.Student{
			"s1": {ID: "s1", StudentID: "2026-0001"},
		},
		numberIndex: map[string]string{"2026-0001": "s1"},
	}
	accounts := &mockAccountRepo{deleteErr: errors.New("account store down")}
	svc := NewStudentService(repo, accounts, &mockDispatcher{}, nil, nil)

	require.NoError(t, svc.DeleteByStudentID(context.Background(), "2026-0001", "admin-1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
}

func TestStudentServiceDeleteBlockedByHistory(t *testing.T) {
	repo := &mockStudentRepo{
		items: map[string]*models.Student{
			"s1": {ID: "s1", StudentID: "2026-0001"},
		},
		numberIndex: map[string]string{"2026-0001": "s1"},
		deleteErr:   fmt.Errorf("delete student: %w", database.ErrForeignKeyViolation),
	}
	accounts := &mockAccountRepo{}
	svc := NewStudentService(repo, accounts, &mockDispatcher{}, nil, nil)

	err := svc.DeleteByStudentID(context.Background(), "2026-0001", "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
	assert.Empty(t, accounts.deletedLinked)
}

func TestStudentServiceDeleteUnknownNumber(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	err := svc.DeleteByStudentID(context.Background(), "missing", "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

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

type mockTeacherRepo struct {
	items       map[string]*models.Teacher
	numberIndex map[string]string
	deleted     []string
	createErr   error
	deleteErr   error
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	var out []models.Teacher
	for _, t := range m.items {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := m.items[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Teacher, error) {
	key := strings.ToUpper(strings.TrimSpace(employeeID))
	if id, ok := m.numberIndex[key]; ok {
		return m.FindByID(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmployeeID(ctx context.Context, employeeID string, excludeID string) (bool, error) {
	if owner, ok := m.numberIndex[strings.ToUpper(strings.TrimSpace(employeeID))]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if m.numberIndex == nil {
		m.numberIndex = make(map[string]string)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	cp := *teacher
	m.items[teacher.ID] = &cp
	m.numberIndex[teacher.EmployeeID] = teacher.ID
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	accounts := &mockAccountRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewTeacherService(repo, accounts, dispatcher, nil, nil)

	teacher, err := svc.Create(context.Background(), CreateTeacherRequest{
		EmployeeID: "t-1001",
		FirstName:  "Maria",
		LastName:   "Santos",
		Email:      "maria@example.com",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1001", teacher.EmployeeID)
	assert.True(t, teacher.Active)

	require.Len(t, accounts.created, 1)
	account := accounts.created[0]
	assert.Equal(t, models.RoleTeacher, account.Role)
	require.NotNil(t, account.LinkedID)
	assert.Equal(t, teacher.ID, *account.LinkedID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("T-1001")))
	assert.Equal(t, []string{models.AuditActionTeacherCreate}, dispatcher.audits)
}

func TestTeacherServiceCreateRejectsMalformedNumber(t *testing.T) {
	repo := &mockTeacherRepo{}
	svc := NewTeacherService(repo, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	for _, employeeID := range []string{"T 1001", "T1"} {
		_, err := svc.Create(context.Background(), CreateTeacherRequest{
			EmployeeID: employeeID,
			FirstName:  "Maria",
			LastName:   "Santos",
			Email:      "maria@example.com",
		}, "admin-1")
		require.Error(t, err, employeeID)
		var apiErr *appErrors.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
	}
	assert.Empty(t, repo.items)
}

func TestTeacherServiceCreateDuplicateNumber(t *testing.T) {
	repo := &mockTeacherRepo{numberIndex: map[string]string{"T-1001": "other"}}
	svc := NewTeacherService(repo, &mockAccountRepo{}, &mockDispatcher{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateTeacherRequest{
		EmployeeID: "t-1001",
		FirstName:  "Maria",
		LastName:   "Santos",
		Email:      "maria@example.com",
	}, "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrDuplicateID.Code, apiErr.Code)
}

func TestTeacherServiceDeleteByEmployeeID(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", EmployeeID: "T-1001", FirstName: "Maria", LastName: "Santos"},
		},
		numberIndex: map[string]string{"T-1001": "t1"},
	}
	accounts := &mockAccountRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewTeacherService(repo, accounts, dispatcher, nil, nil)

	require.NoError(t, svc.DeleteByEmployeeID(context.Background(), "t-1001", "admin-1"))
	assert.Equal(t, []string{"t1"}, repo.deleted)
	assert.Equal(t, []string{"t1"}, accounts.deletedLinked)
	assert.Equal(t, []string{models.AuditActionTeacherDelete}, dispatcher.audits)
}

func TestTeacherServiceDeleteBlockedByOfferings(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", EmployeeID: "T-1001"},
		},
		numberIndex: map[string]string{"T-1001": "t1"},
		deleteErr:   fmt.Errorf("delete teacher: %w", database.ErrForeignKeyViolation),
	}
	accounts := &mockAccountRepo{}
	svc := NewTeacherService(repo, accounts, &mockDispatcher{}, nil, nil)

	err := svc.DeleteByEmployeeID(context.Background(), "T-1001", "admin-1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
	assert.Empty(t, accounts.deletedLinked)
}

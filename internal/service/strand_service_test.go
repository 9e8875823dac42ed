package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type mockStrandRepo struct {
	items     map[string]*models.Strand
	nameIndex map[string]string
	deleted   []string
}

func (m *mockStrandRepo) List(ctx context.Context, filter models.StrandFilter) ([]models.Strand, int, error) {
	return nil, 0, nil
}

func (m *mockStrandRepo) FindByID(ctx context.Context, id string) (*models.Strand, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStrandRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	if owner, ok := m.nameIndex[name]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStrandRepo) Create(ctx context.Context, strand *models.Strand) error {
	if m.items == nil {
		m.items = make(map[string]*models.Strand)
	}
	if strand.ID == "" {
		strand.ID = "generated"
	}
	cp := *strand
	m.items[strand.ID] = &cp
	return nil
}

func (m *mockStrandRepo) Update(ctx context.Context, strand *models.Strand) error {
	cp := *strand
	m.items[strand.ID] = &cp
	return nil
}

func (m *mockStrandRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockSectionCounter struct {
	counts map[string]int
}

func (m *mockSectionCounter) CountByStrand(ctx context.Context, strandID string) (int, error) {
	return m.counts[strandID], nil
}

func TestStrandServiceCreateDuplicateName(t *testing.T) {
	repo := &mockStrandRepo{nameIndex: map[string]string{"STEM": "other"}}
	svc := NewStrandService(repo, &mockSectionCounter{}, nil, nil)

	_, err := svc.Create(context.Background(), StrandRequest{Name: "STEM"})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrDuplicateName.Code, apiErr.Code)
}

func TestStrandServiceDeleteBlockedBySections(t *testing.T) {
	repo := &mockStrandRepo{items: map[string]*models.Strand{"st1": {ID: "st1", Name: "STEM"}}}
	sections := &mockSectionCounter{counts: map[string]int{"st1": 2}}
	svc := NewStrandService(repo, sections, nil, nil)

	err := svc.Delete(context.Background(), "st1")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestStrandServiceDeleteEmptyStrand(t *testing.T) {
	repo := &mockStrandRepo{items: map[string]*models.Strand{"st1": {ID: "st1", Name: "STEM"}}}
	svc := NewStrandService(repo, &mockSectionCounter{}, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "st1"))
	assert.Equal(t, []string{"st1"}, repo.deleted)
}

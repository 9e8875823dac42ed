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

type mockSectionRepo struct {
	items map[string]*models.Section
	names map[string]map[string]string
}

func (m *mockSectionRepo) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	return nil, 0, nil
}

func (m *mockSectionRepo) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSectionRepo) ExistsByName(ctx context.Context, strandID, name, excludeID string) (bool, error) {
	if owner, ok := m.names[strandID][name]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSectionRepo) Create(ctx context.Context, section *models.Section) error {
	if m.items == nil {
		m.items = make(map[string]*models.Section)
	}
	if section.ID == "" {
		section.ID = "generated"
	}
	cp := *section
	m.items[section.ID] = &cp
	return nil
}

func (m *mockSectionRepo) Update(ctx context.Context, section *models.Section) error {
	cp := *section
	m.items[section.ID] = &cp
	return nil
}

func (m *mockSectionRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type mockStrandReader struct {
	strands map[string]*models.Strand
}

func (m *mockStrandReader) FindByID(ctx context.Context, id string) (*models.Strand, error) {
	if s, ok := m.strands[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func TestSectionServiceCreate(t *testing.T) {
	repo := &mockSectionRepo{}
	strands := &mockStrandReader{strands: map[string]*models.Strand{"st1": {ID: "st1", Name: "STEM"}}}
	svc := NewSectionService(repo, strands, nil, nil)

	section, err := svc.Create(context.Background(), SectionRequest{StrandID: "st1", Name: "Faraday", AdviserName: "M. Santos"})
	require.NoError(t, err)
	assert.Equal(t, "st1", section.StrandID)
	require.NotNil(t, section.AdviserName)
	assert.Equal(t, "M. Santos", *section.AdviserName)
}

func TestSectionServiceCreateUnknownStrand(t *testing.T) {
	svc := NewSectionService(&mockSectionRepo{}, &mockStrandReader{}, nil, nil)

	_, err := svc.Create(context.Background(), SectionRequest{StrandID: "missing", Name: "Faraday"})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, apiErr.Code)
}

func TestSectionServiceNameUniquePerStrand(t *testing.T) {
	repo := &mockSectionRepo{names: map[string]map[string]string{
		"st1": {"Faraday": "sec1"},
	}}
	strands := &mockStrandReader{strands: map[string]*models.Strand{
		"st1": {ID: "st1", Name: "STEM"},
		"st2": {ID: "st2", Name: "HUMSS"},
	}}
	svc := NewSectionService(repo, strands, nil, nil)

	_, err := svc.Create(context.Background(), SectionRequest{StrandID: "st1", Name: "Faraday"})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrDuplicateName.Code, apiErr.Code)

	// The same name is free in a different strand.
	_, err = svc.Create(context.Background(), SectionRequest{StrandID: "st2", Name: "Faraday"})
	require.NoError(t, err)
}

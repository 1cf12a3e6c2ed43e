package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type mockSchoolYearStore struct {
	years map[string]models.SchoolYearDetail
}

func (m *mockSchoolYearStore) List(ctx context.Context, filter models.SchoolYearFilter) ([]models.SchoolYearDetail, int, error) {
	var out []models.SchoolYearDetail
	for _, y := range m.years {
		out = append(out, y)
	}
	return out, len(out), nil
}

func (m *mockSchoolYearStore) FindByID(ctx context.Context, id string) (*models.SchoolYearDetail, error) {
	if y, ok := m.years[id]; ok {
		return &y, nil
	}
	return nil, sql.ErrNoRows
}

func TestSchoolYearGetNotFound(t *testing.T) {
	svc := NewSchoolYearService(&mockSchoolYearStore{}, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestLifecycleCodeResolution(t *testing.T) {
	inactive := models.SchoolYearStatusInactive
	store := &mockSchoolYearStore{years: map[string]models.SchoolYearDetail{
		"sy-closed": {StatusCode: &inactive},
		"sy-unset":  {},
	}}
	svc := NewSchoolYearService(store, nil)

	code, err := svc.LifecycleCode(context.Background(), "sy-closed")
	require.NoError(t, err)
	assert.Equal(t, models.SchoolYearStatusInactive, code)

	// An unset status behaves like any non-INACTIVE code.
	code, err = svc.LifecycleCode(context.Background(), "sy-unset")
	require.NoError(t, err)
	assert.Equal(t, "", code)

	// Unknown school years resolve to empty rather than erroring so the
	// duplicate check stays conservative.
	code, err = svc.LifecycleCode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "", code)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type schoolYearStore interface {
	List(ctx context.Context, filter models.SchoolYearFilter) ([]models.SchoolYearDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SchoolYearDetail, error)
}

// SchoolYearService exposes school years and their lifecycle codes. Lookups
// by id are cached since duplicate detection resolves the same school year
// on every enrollment attempt.
type SchoolYearService struct {
	repo  schoolYearStore
	cache *CacheService
}

// NewSchoolYearService constructs the service.
func NewSchoolYearService(repo schoolYearStore, cache *CacheService) *SchoolYearService {
	return &SchoolYearService{repo: repo, cache: cache}
}

// List returns school years with pagination metadata.
func (s *SchoolYearService) List(ctx context.Context, filter models.SchoolYearFilter) ([]models.SchoolYearDetail, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one school year with its resolved lifecycle code.
func (s *SchoolYearService) Get(ctx context.Context, id string) (*models.SchoolYearDetail, error) {
	cacheKey := schoolYearCacheKey(id)
	if s.cache != nil {
		var cached models.SchoolYearDetail
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	year, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school year not found")
		}
		return nil, fmt.Errorf("get school year: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, year, 0)
	}
	return year, nil
}

// LifecycleCode resolves the lifecycle status code for a school year. An
// unset status resolves to the empty string, which callers treat the same as
// any non-INACTIVE code.
func (s *SchoolYearService) LifecycleCode(ctx context.Context, id string) (string, error) {
	year, err := s.Get(ctx, id)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
			return "", nil
		}
		return "", err
	}
	if year.StatusCode == nil {
		return "", nil
	}
	return *year.StatusCode, nil
}

// InvalidateCache drops cached school years after a taxonomy change so
// lifecycle codes re-resolve.
func (s *SchoolYearService) InvalidateCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "schoolyears:*")
	}
}

func schoolYearCacheKey(id string) string {
	return "schoolyears:id:" + id
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type taxonomyStore interface {
	List(ctx context.Context, filter models.TaxonomyFilter) ([]models.Taxonomy, error)
	FindByID(ctx context.Context, id string) (*models.Taxonomy, error)
	FindByCode(ctx context.Context, category, code string) (*models.Taxonomy, error)
	Create(ctx context.Context, entry *models.Taxonomy) error
	Update(ctx context.Context, entry *models.Taxonomy) error
	Deactivate(ctx context.Context, id string) error
}

type schoolYearInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// TaxonomyService manages configurable enumerations. List results are cached
// per category; any write invalidates the category and, for school-year
// statuses, the school-year cache that resolves through them.
type TaxonomyService struct {
	repo        taxonomyStore
	cache       *CacheService
	schoolYears schoolYearInvalidator
	audit       *AuditService
}

// NewTaxonomyService constructs the service.
func NewTaxonomyService(repo taxonomyStore, cache *CacheService, schoolYears schoolYearInvalidator, audit *AuditService) *TaxonomyService {
	return &TaxonomyService{repo: repo, cache: cache, schoolYears: schoolYears, audit: audit}
}

// List returns taxonomy entries, optionally filtered by category and tenant.
func (s *TaxonomyService) List(ctx context.Context, filter models.TaxonomyFilter) ([]models.Taxonomy, error) {
	key := taxonomyCacheKey(filter)
	if s.cache != nil && key != "" {
		var cached []models.Taxonomy
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && key != "" {
		_ = s.cache.Set(ctx, key, entries, 0)
	}
	return entries, nil
}

// Get returns one taxonomy entry.
func (s *TaxonomyService) Get(ctx context.Context, id string) (*models.Taxonomy, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "taxonomy entry not found")
		}
		return nil, fmt.Errorf("get taxonomy: %w", err)
	}
	return entry, nil
}

// Create adds a new enumeration entry.
func (s *TaxonomyService) Create(ctx context.Context, actor Actor, entry *models.Taxonomy) (*models.Taxonomy, error) {
	entry.Category = strings.ToUpper(strings.TrimSpace(entry.Category))
	entry.Code = strings.ToUpper(strings.TrimSpace(entry.Code))
	if entry.Category == "" || entry.Code == "" || entry.Label == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category, code and label are required")
	}

	if existing, err := s.repo.FindByCode(ctx, entry.Category, entry.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("code %s already exists in category %s", entry.Code, entry.Category))
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check taxonomy code: %w", err)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx, entry.Category)
	s.recordChange(actor, entry.ID, nil, entry)
	return entry, nil
}

// Update rewrites the mutable attributes of an entry. Category and code are
// immutable; historical records resolve through them.
func (s *TaxonomyService) Update(ctx context.Context, actor Actor, id string, label string, active bool, sortOrder int) (*models.Taxonomy, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	old := *entry
	entry.Label = label
	entry.Active = active
	entry.SortOrder = sortOrder
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx, entry.Category)
	s.recordChange(actor, entry.ID, &old, entry)
	return entry, nil
}

// Deactivate retires an entry without deleting it.
func (s *TaxonomyService) Deactivate(ctx context.Context, actor Actor, id string) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	old := *entry
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	entry.Active = false

	s.invalidate(ctx, entry.Category)
	s.recordChange(actor, entry.ID, &old, entry)
	return nil
}

func (s *TaxonomyService) invalidate(ctx context.Context, category string) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "taxonomies:"+strings.ToLower(category)+":*")
	}
	if category == models.TaxonomyCategorySchoolYearStatus && s.schoolYears != nil {
		s.schoolYears.InvalidateCache(ctx)
	}
}

func (s *TaxonomyService) recordChange(actor Actor, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor.UserID != "" {
		userID = &actor.UserID
	}
	s.audit.RecordChange(models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionTaxonomyChange,
		Resource:   "taxonomies",
		ResourceID: &resourceID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}, oldValues, newValues)
}

func taxonomyCacheKey(filter models.TaxonomyFilter) string {
	if filter.Category == "" {
		return ""
	}
	org := filter.OrganizationID
	if org == "" {
		org = "global"
	}
	active := "all"
	if filter.Active != nil {
		if *filter.Active {
			active = "active"
		} else {
			active = "inactive"
		}
	}
	return fmt.Sprintf("taxonomies:%s:%s:%s", strings.ToLower(filter.Category), org, active)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type organizationStore interface {
	List(ctx context.Context) ([]models.Organization, error)
	FindByID(ctx context.Context, id string) (*models.Organization, error)
}

// OrganizationService exposes read access to tenants.
type OrganizationService struct {
	repo organizationStore
}

// NewOrganizationService constructs the service.
func NewOrganizationService(repo organizationStore) *OrganizationService {
	return &OrganizationService{repo: repo}
}

// List returns organizations visible to the caller. Non-elevated callers see
// only their own tenant.
func (s *OrganizationService) List(ctx context.Context, scope models.TenantScope) ([]models.Organization, error) {
	organizations, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if scope.AllTenants {
		return organizations, nil
	}
	scoped := make([]models.Organization, 0, 1)
	for _, organization := range organizations {
		if scope.Allows(organization.ID) {
			scoped = append(scoped, organization)
		}
	}
	return scoped, nil
}

// Get returns one organization.
func (s *OrganizationService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Organization, error) {
	if !scope.Allows(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
	}
	organization, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return organization, nil
}

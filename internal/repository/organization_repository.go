package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cvbeltran/vschool-api/internal/models"
)

// OrganizationRepository provides read access to tenants.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs the repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// List returns all organizations ordered by name.
func (r *OrganizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	const query = `SELECT id, code, name, active, created_at, updated_at FROM organizations ORDER BY name`
	var organizations []models.Organization
	if err := r.db.SelectContext(ctx, &organizations, query); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return organizations, nil
}

// FindByID returns an organization by identifier.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	const query = `SELECT id, code, name, active, created_at, updated_at FROM organizations WHERE id = $1`
	var organization models.Organization
	if err := r.db.GetContext(ctx, &organization, query, id); err != nil {
		return nil, err
	}
	return &organization, nil
}

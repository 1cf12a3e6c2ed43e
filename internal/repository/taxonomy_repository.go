package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cvbeltran/vschool-api/internal/models"
)

// TaxonomyRepository persists configurable enumeration entries.
type TaxonomyRepository struct {
	db *sqlx.DB
}

// NewTaxonomyRepository constructs the repository.
func NewTaxonomyRepository(db *sqlx.DB) *TaxonomyRepository {
	return &TaxonomyRepository{db: db}
}

const taxonomyColumns = `id, category, code, label, active, sort_order, organization_id, created_at, updated_at`

// List returns taxonomy entries for a category, global entries first.
func (r *TaxonomyRepository) List(ctx context.Context, filter models.TaxonomyFilter) ([]models.Taxonomy, error) {
	query := fmt.Sprintf("SELECT %s FROM taxonomies", taxonomyColumns)
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.Category))
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("(organization_id IS NULL OR organization_id = $%d)", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY category, sort_order, code"

	var entries []models.Taxonomy
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list taxonomies: %w", err)
	}
	return entries, nil
}

// FindByID returns a taxonomy entry by identifier.
func (r *TaxonomyRepository) FindByID(ctx context.Context, id string) (*models.Taxonomy, error) {
	query := fmt.Sprintf("SELECT %s FROM taxonomies WHERE id = $1", taxonomyColumns)
	var entry models.Taxonomy
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByCode resolves a category/code pair.
func (r *TaxonomyRepository) FindByCode(ctx context.Context, category, code string) (*models.Taxonomy, error) {
	query := fmt.Sprintf("SELECT %s FROM taxonomies WHERE category = $1 AND code = $2 LIMIT 1", taxonomyColumns)
	var entry models.Taxonomy
	if err := r.db.GetContext(ctx, &entry, query, strings.ToUpper(category), strings.ToUpper(code)); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a new taxonomy entry.
func (r *TaxonomyRepository) Create(ctx context.Context, entry *models.Taxonomy) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO taxonomies (id, category, code, label, active, sort_order, organization_id, created_at, updated_at)
        VALUES (:id, :category, :code, :label, :active, :sort_order, :organization_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create taxonomy: %w", err)
	}
	return nil
}

// Update rewrites the mutable attributes of a taxonomy entry.
func (r *TaxonomyRepository) Update(ctx context.Context, entry *models.Taxonomy) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE taxonomies SET label = :label, active = :active, sort_order = :sort_order, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update taxonomy: %w", err)
	}
	return nil
}

// Deactivate retires a taxonomy entry without deleting it; historical rows
// keep resolving through the code.
func (r *TaxonomyRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE taxonomies SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate taxonomy: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cvbeltran/vschool-api/internal/models"
)

// SchoolYearRepository provides read access to school years.
type SchoolYearRepository struct {
	db *sqlx.DB
}

// NewSchoolYearRepository constructs the repository.
func NewSchoolYearRepository(db *sqlx.DB) *SchoolYearRepository {
	return &SchoolYearRepository{db: db}
}

// List returns school years with their resolved lifecycle codes.
func (r *SchoolYearRepository) List(ctx context.Context, filter models.SchoolYearFilter) ([]models.SchoolYearDetail, int, error) {
	base := `FROM school_years sy LEFT JOIN taxonomies tx ON tx.id = sy.status_id`
	var conditions []string
	var args []interface{}

	if filter.StatusCode != "" {
		conditions = append(conditions, fmt.Sprintf("tx.code = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.StatusCode))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sy.id, sy.name, sy.status_id, sy.start_date, sy.end_date, sy.created_at, sy.updated_at,
        tx.code AS status_code, tx.label AS status_label
        %s ORDER BY sy.start_date %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var years []models.SchoolYearDetail
	if err := r.db.SelectContext(ctx, &years, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list school years: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count school years: %w", err)
	}
	return years, total, nil
}

// FindByID returns a school year with its resolved lifecycle code.
func (r *SchoolYearRepository) FindByID(ctx context.Context, id string) (*models.SchoolYearDetail, error) {
	const query = `SELECT sy.id, sy.name, sy.status_id, sy.start_date, sy.end_date, sy.created_at, sy.updated_at,
        tx.code AS status_code, tx.label AS status_label
        FROM school_years sy
        LEFT JOIN taxonomies tx ON tx.id = sy.status_id
        WHERE sy.id = $1`
	var year models.SchoolYearDetail
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

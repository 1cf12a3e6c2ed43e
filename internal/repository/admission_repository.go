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

// AdmissionRepository handles persistence of admission applications.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// List returns admissions filtered by the provided criteria.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error) {
	base := `FROM admissions a
LEFT JOIN organizations o ON o.id = a.organization_id
LEFT JOIN school_years sy ON sy.id = a.school_year_id
LEFT JOIN students st ON st.admission_id = a.id`
	var conditions []string
	var args []interface{}

	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("a.organization_id = $%d", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("a.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.SchoolYearID != "" {
		conditions = append(conditions, fmt.Sprintf("a.school_year_id = $%d", len(args)+1))
		args = append(args, filter.SchoolYearID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(a.first_name) LIKE $%d OR LOWER(a.last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "a.created_at",
		"last_name":  "a.last_name",
		"status":     "a.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
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

	query := fmt.Sprintf(`SELECT a.id, a.organization_id, a.first_name, a.last_name, a.email,
        a.school_id, a.program_id, a.section_id, a.school_year_id, a.status, a.created_at, a.updated_at,
        o.name AS organization_name, sy.name AS school_year_name, st.id AS student_id
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var admissions []models.AdmissionDetail
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count admissions: %w", err)
	}
	return admissions, total, nil
}

// FindByID returns an admission by its ID.
func (r *AdmissionRepository) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	const query = `SELECT id, organization_id, first_name, last_name, email, school_id, program_id, section_id,
        school_year_id, status, created_at, updated_at FROM admissions WHERE id = $1`
	var admission models.Admission
	if err := r.db.GetContext(ctx, &admission, query, id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// FindDetailByID returns an admission with contextual info.
func (r *AdmissionRepository) FindDetailByID(ctx context.Context, id string) (*models.AdmissionDetail, error) {
	const query = `SELECT a.id, a.organization_id, a.first_name, a.last_name, a.email,
        a.school_id, a.program_id, a.section_id, a.school_year_id, a.status, a.created_at, a.updated_at,
        o.name AS organization_name, sy.name AS school_year_name, st.id AS student_id
        FROM admissions a
        LEFT JOIN organizations o ON o.id = a.organization_id
        LEFT JOIN school_years sy ON sy.id = a.school_year_id
        LEFT JOIN students st ON st.admission_id = a.id
        WHERE a.id = $1`
	var detail models.AdmissionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new admission in PENDING state.
func (r *AdmissionRepository) Create(ctx context.Context, admission *models.Admission) error {
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	if admission.Status == "" {
		admission.Status = models.AdmissionStatusPending
	}
	now := time.Now().UTC()
	if admission.CreatedAt.IsZero() {
		admission.CreatedAt = now
	}
	admission.UpdatedAt = now
	const query = `INSERT INTO admissions (id, organization_id, first_name, last_name, email, school_id, program_id,
        section_id, school_year_id, status, created_at, updated_at)
        VALUES (:id, :organization_id, :first_name, :last_name, :email, :school_id, :program_id,
        :section_id, :school_year_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admission); err != nil {
		return fmt.Errorf("create admission: %w", err)
	}
	return nil
}

// UpdateStatus transitions an admission from one status to another. The
// update is a compare-and-swap on the current status; it returns false when
// the admission was not in the expected status, which callers treat as a
// precondition violation (or a lost race).
func (r *AdmissionRepository) UpdateStatus(ctx context.Context, id string, from, to models.AdmissionStatus) (bool, error) {
	const query = `UPDATE admissions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update admission status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update admission status: %w", err)
	}
	return affected == 1, nil
}

// ListEnrolledCohort returns enrolled admissions sharing the school year and
// program, with the date of birth joined through the student record each
// admission produced. An empty organizationID widens the scan to all tenants.
func (r *AdmissionRepository) ListEnrolledCohort(ctx context.Context, schoolYearID, programID, organizationID string) ([]models.CohortCandidate, error) {
	query := `SELECT a.id AS admission_id, a.organization_id, o.name AS organization_name,
        a.first_name, a.last_name, a.email, st.date_of_birth
        FROM admissions a
        LEFT JOIN organizations o ON o.id = a.organization_id
        LEFT JOIN students st ON st.admission_id = a.id
        WHERE a.status = $1 AND a.school_year_id = $2 AND a.program_id = $3`
	args := []interface{}{models.AdmissionStatusEnrolled, schoolYearID, programID}
	if organizationID != "" {
		query += fmt.Sprintf(" AND a.organization_id = $%d", len(args)+1)
		args = append(args, organizationID)
	}
	var candidates []models.CohortCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list enrolled cohort: %w", err)
	}
	return candidates, nil
}

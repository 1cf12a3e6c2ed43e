package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cvbeltran/vschool-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.organization_id, s.admission_id, s.first_name, s.last_name,
        s.legal_first_name, s.legal_last_name, s.middle_initial, s.email, s.date_of_birth, s.created_at, s.updated_at`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN organizations o ON o.id = s.organization_id"
	var conditions []string
	var args []interface{}

	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("s.organization_id = $%d", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if filter.SchoolYearID != "" {
		conditions = append(conditions, fmt.Sprintf("s.admission_id IN (SELECT id FROM admissions WHERE school_year_id = $%d)", len(args)+1))
		args = append(args, filter.SchoolYearID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"last_name":  "s.last_name",
		"created_at": "s.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
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

	query := fmt.Sprintf(`SELECT %s, o.name AS organization_name %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentColumns, base+clause, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, o.name AS organization_name
        FROM students s LEFT JOIN organizations o ON o.id = s.organization_id
        WHERE s.id = $1`, studentColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByAdmission returns the student that references the given admission,
// or sql.ErrNoRows when none exists. This is the authoritative check behind
// the one-student-per-admission invariant.
func (r *StudentRepository) FindByAdmission(ctx context.Context, admissionID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s WHERE s.admission_id = $1 LIMIT 1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, admissionID); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByName returns students whose trimmed, case-folded names equal the
// given pair. The scan is deliberately not tenant-scoped: the global identity
// duplicate check crosses organization boundaries.
func (r *StudentRepository) ListByName(ctx context.Context, firstName, lastName string) ([]models.StudentIdentity, error) {
	const query = `SELECT s.id AS student_id, s.organization_id, o.name AS organization_name,
        s.first_name, s.last_name, s.email, s.date_of_birth
        FROM students s
        LEFT JOIN organizations o ON o.id = s.organization_id
        WHERE LOWER(TRIM(s.first_name)) = $1 AND LOWER(TRIM(s.last_name)) = $2`
	first := strings.ToLower(strings.TrimSpace(firstName))
	last := strings.ToLower(strings.TrimSpace(lastName))
	var identities []models.StudentIdentity
	if err := r.db.SelectContext(ctx, &identities, query, first, last); err != nil {
		return nil, fmt.Errorf("list students by name: %w", err)
	}
	return identities, nil
}

// Create inserts a new student record. Uniqueness of admission_id is enforced
// by the students_admission_id_key index; callers translate that violation
// into the already-enrolled signal.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, organization_id, admission_id, first_name, last_name,
        legal_first_name, legal_last_name, middle_initial, email, date_of_birth, created_at, updated_at)
        VALUES (:id, :organization_id, :admission_id, :first_name, :last_name,
        :legal_first_name, :legal_last_name, :middle_initial, :email, :date_of_birth, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// ExistsByAdmission reports whether any student references the admission.
func (r *StudentRepository) ExistsByAdmission(ctx context.Context, admissionID string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE admission_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, admissionID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check admission reference: %w", err)
	}
	return true, nil
}

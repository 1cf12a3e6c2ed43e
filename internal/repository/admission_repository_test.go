package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cvbeltran/vschool-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAdmissionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "organization_id", "first_name", "last_name", "email",
		"school_id", "program_id", "section_id", "school_year_id", "status", "created_at", "updated_at"}).
		AddRow("adm-1", "org-1", "Jane", "Doe", nil, "school-1", "program-1", nil, "sy-1",
			models.AdmissionStatusPending, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, organization_id, first_name, last_name").
		WithArgs("adm-1").
		WillReturnRows(rows)

	admission, err := repo.FindByID(context.Background(), "adm-1")
	require.NoError(t, err)
	require.Equal(t, models.AdmissionStatusPending, admission.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryFindByIDNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectQuery("SELECT id, organization_id, first_name, last_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec("INSERT INTO admissions").WillReturnResult(sqlmock.NewResult(0, 1))

	admission := &models.Admission{
		OrganizationID: "org-1",
		FirstName:      "Jane",
		LastName:       "Doe",
		SchoolID:       "school-1",
		ProgramID:      "program-1",
		SchoolYearID:   "sy-1",
	}
	require.NoError(t, repo.Create(context.Background(), admission))
	require.NotEmpty(t, admission.ID)
	require.Equal(t, models.AdmissionStatusPending, admission.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryUpdateStatusSwapsOnMatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admissions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("adm-1", models.AdmissionStatusPending, models.AdmissionStatusAccepted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), "adm-1", models.AdmissionStatusPending, models.AdmissionStatusAccepted)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryUpdateStatusStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	// No row has the expected current status.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE admissions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("adm-1", models.AdmissionStatusAccepted, models.AdmissionStatusEnrolled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "adm-1", models.AdmissionStatusAccepted, models.AdmissionStatusEnrolled)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryListEnrolledCohortScoped(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	rows := sqlmock.NewRows([]string{"admission_id", "organization_id", "organization_name",
		"first_name", "last_name", "email", "date_of_birth"}).
		AddRow("adm-9", "org-1", "Hillcrest", "Jane", "Doe", "jane@x.com", nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.status = $1 AND a.school_year_id = $2 AND a.program_id = $3 AND a.organization_id = $4")).
		WithArgs(models.AdmissionStatusEnrolled, "sy-1", "program-1", "org-1").
		WillReturnRows(rows)

	candidates, err := repo.ListEnrolledCohort(context.Background(), "sy-1", "program-1", "org-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "adm-9", candidates[0].AdmissionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryListEnrolledCohortAllTenants(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.status = $1 AND a.school_year_id = $2 AND a.program_id = $3")).
		WithArgs(models.AdmissionStatusEnrolled, "sy-1", "program-1").
		WillReturnRows(sqlmock.NewRows([]string{"admission_id", "organization_id", "organization_name",
			"first_name", "last_name", "email", "date_of_birth"}))

	candidates, err := repo.ListEnrolledCohort(context.Background(), "sy-1", "program-1", "")
	require.NoError(t, err)
	require.Empty(t, candidates)
	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type mockCohortLister struct {
	candidates []models.CohortCandidate
	lastOrgID  string
}

func (m *mockCohortLister) ListEnrolledCohort(ctx context.Context, schoolYearID, programID, organizationID string) ([]models.CohortCandidate, error) {
	m.lastOrgID = organizationID
	return m.candidates, nil
}

type mockIdentityScanner struct {
	identities []models.StudentIdentity
}

func (m *mockIdentityScanner) ListByName(ctx context.Context, firstName, lastName string) ([]models.StudentIdentity, error) {
	return m.identities, nil
}

type mockLifecycleResolver struct {
	code string
}

func (m *mockLifecycleResolver) LifecycleCode(ctx context.Context, schoolYearID string) (string, error) {
	return m.code, nil
}

func newChecker(cohort *mockCohortLister, students *mockIdentityScanner, lifecycle *mockLifecycleResolver) *DuplicateChecker {
	if cohort == nil {
		cohort = &mockCohortLister{}
	}
	if students == nil {
		students = &mockIdentityScanner{}
	}
	if lifecycle == nil {
		lifecycle = &mockLifecycleResolver{code: "ACTIVE"}
	}
	return NewDuplicateChecker(cohort, students, lifecycle, zap.NewNop())
}

func identityOf(first, last string, email *string, dob *time.Time) models.EnrollmentIdentity {
	return models.EnrollmentIdentity{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		DateOfBirth:  dob,
		SchoolYearID: "sy-1",
		ProgramID:    "program-1",
	}
}

func strPtr(s string) *string { return &s }

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestCheckCleanApplicantPasses(t *testing.T) {
	checker := newChecker(nil, nil, nil)

	err := checker.Check(context.Background(), identityOf("Jane", "Doe", strPtr("jane@x.com"), nil), models.TenantScope{OrganizationID: "org-1"})
	assert.NoError(t, err)
}

func TestCheckCohortEmailMatchBlocks(t *testing.T) {
	cohort := &mockCohortLister{candidates: []models.CohortCandidate{
		{AdmissionID: "adm-9", FirstName: "Jane", LastName: "Doe", Email: strPtr("JANE@X.COM")},
	}}
	checker := newChecker(cohort, nil, nil)

	err := checker.Check(context.Background(), identityOf("jane", "doe", strPtr("jane@x.com"), nil), models.TenantScope{OrganizationID: "org-1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicate.Code))
	assert.Contains(t, err.Error(), "active enrollment")
}

func TestCheckCohortDOBMatchBlocks(t *testing.T) {
	cohort := &mockCohortLister{candidates: []models.CohortCandidate{
		{AdmissionID: "adm-9", FirstName: "Jane", LastName: "Doe", DateOfBirth: datePtr(2015, time.March, 2)},
	}}
	checker := newChecker(cohort, nil, nil)

	err := checker.Check(context.Background(), identityOf("Jane", "Doe", nil, datePtr(2015, time.March, 2)), models.TenantScope{OrganizationID: "org-1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicate.Code))
}

func TestCheckCohortDifferentIdentifiersPass(t *testing.T) {
	cohort := &mockCohortLister{candidates: []models.CohortCandidate{
		{AdmissionID: "adm-9", FirstName: "Jane", LastName: "Doe", Email: strPtr("other@x.com"), DateOfBirth: datePtr(2014, time.May, 5)},
	}}
	checker := newChecker(cohort, nil, nil)

	err := checker.Check(context.Background(), identityOf("Jane", "Doe", strPtr("jane@x.com"), datePtr(2015, time.March, 2)), models.TenantScope{OrganizationID: "org-1"})
	assert.NoError(t, err)
}

func TestCheckBareNameMatchBlocksConservatively(t *testing.T) {
	cohort := &mockCohortLister{candidates: []models.CohortCandidate{
		{AdmissionID: "adm-9", FirstName: "Jane", LastName: "Doe", Email: strPtr("jane@x.com")},
	}}
	checker := newChecker(cohort, nil, nil)

	// The applicant supplies no identifier at all, so a name collision alone
	// forces manual review.
	err := checker.Check(context.Background(), identityOf("Jane", "Doe", nil, nil), models.TenantScope{OrganizationID: "org-1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicate.Code))
}

func TestCheckInactiveSchoolYearLiftsCohortBlock(t *testing.T) {
	cohort := &mockCohortLister{candidates: []models.CohortCandidate{
		{AdmissionID: "adm-9", FirstName: "Jane", LastName: "Doe", Email: strPtr("jane@x.com")},
	}}
	lifecycle := &mockLifecycleResolver{code: models.SchoolYearStatusInactive}
	checker := newChecker(cohort, nil, lifecycle)

	err := checker.Check(context.Background(), identityOf("Jane", "Doe", strPtr("jane@x.com"), nil), models.TenantScope{OrganizationID: "org-1"})
	assert.NoError(t, err)
}

func TestCheckGlobalIdentityBlocksAcrossTenants(t *testing.T) {
	students := &mockIdentityScanner{identities: []models.StudentIdentity{
		{
			StudentID:        "stu-7",
			OrganizationID:   "org-other",
			OrganizationName: "Northside Academy",
			FirstName:        "Jane",
			LastName:         "Doe",
			Email:            strPtr("jane@x.com"),
		},
	}}
	checker := newChecker(nil, students, nil)

	// The caller is scoped to org-1; the conflicting student lives elsewhere
	// and still blocks.
	err := checker.Check(context.Background(), identityOf("Jane", "Doe", strPtr("jane@x.com"), nil), models.TenantScope{OrganizationID: "org-1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicate.Code))
	assert.Contains(t, err.Error(), "Northside Academy")
}

func TestCheckGlobalIdentityIgnoresInactiveLifecycle(t *testing.T) {
	students := &mockIdentityScanner{identities: []models.StudentIdentity{
		{StudentID: "stu-7", FirstName: "Jane", LastName: "Doe", DateOfBirth: datePtr(2015, time.March, 2)},
	}}
	lifecycle := &mockLifecycleResolver{code: models.SchoolYearStatusInactive}
	checker := newChecker(nil, students, lifecycle)

	// The lifecycle exemption applies to the cohort check only.
	err := checker.Check(context.Background(), identityOf("Jane", "Doe", nil, datePtr(2015, time.March, 2)), models.TenantScope{OrganizationID: "org-1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicate.Code))
}

func TestCheckCohortScopesToTenant(t *testing.T) {
	cohort := &mockCohortLister{}
	checker := newChecker(cohort, nil, nil)

	_ = checker.Check(context.Background(), identityOf("Jane", "Doe", strPtr("jane@x.com"), nil), models.TenantScope{OrganizationID: "org-1"})
	assert.Equal(t, "org-1", cohort.lastOrgID)

	_ = checker.Check(context.Background(), identityOf("Jane", "Doe", strPtr("jane@x.com"), nil), models.TenantScope{AllTenants: true})
	assert.Equal(t, "", cohort.lastOrgID)
}

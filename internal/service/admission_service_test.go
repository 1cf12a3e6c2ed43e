package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/pkg/config"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type mockAdmissionStore struct {
	admissions    map[string]models.Admission
	updateErr     error
	forceCASMiss  bool
	statusUpdates int
}

func (m *mockAdmissionStore) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error) {
	return nil, 0, nil
}

func (m *mockAdmissionStore) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	if a, ok := m.admissions[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdmissionStore) FindDetailByID(ctx context.Context, id string) (*models.AdmissionDetail, error) {
	if a, ok := m.admissions[id]; ok {
		return &models.AdmissionDetail{Admission: a}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdmissionStore) Create(ctx context.Context, admission *models.Admission) error {
	if m.admissions == nil {
		m.admissions = make(map[string]models.Admission)
	}
	if admission.ID == "" {
		admission.ID = "new-admission"
	}
	m.admissions[admission.ID] = *admission
	return nil
}

func (m *mockAdmissionStore) UpdateStatus(ctx context.Context, id string, from, to models.AdmissionStatus) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	if m.forceCASMiss {
		return false, nil
	}
	a, ok := m.admissions[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	m.admissions[id] = a
	m.statusUpdates++
	return true, nil
}

type mockStudentStore struct {
	byAdmission map[string]models.Student
	createErr   error
	created     []*models.Student
}

func (m *mockStudentStore) FindByAdmission(ctx context.Context, admissionID string) (*models.Student, error) {
	if s, ok := m.byAdmission[admissionID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.byAdmission == nil {
		m.byAdmission = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "new-student"
	}
	if student.AdmissionID != nil {
		m.byAdmission[*student.AdmissionID] = *student
	}
	m.created = append(m.created, student)
	return nil
}

type stubChecker struct {
	err    error
	called int
}

func (s *stubChecker) Check(ctx context.Context, identity models.EnrollmentIdentity, scope models.TenantScope) error {
	s.called++
	return s.err
}

func newTestAdmissionService(admissions *mockAdmissionStore, students *mockStudentStore, checker duplicateGuard, cfg config.AdmissionsConfig) *AdmissionService {
	svc := NewAdmissionService(admissions, students, checker, nil, nil, cfg, zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)
	}
	return svc
}

func pendingAdmission(id string) models.Admission {
	return models.Admission{
		ID:             id,
		OrganizationID: "org-1",
		FirstName:      "Jane",
		LastName:       "Doe",
		SchoolID:       "school-1",
		ProgramID:      "program-1",
		SchoolYearID:   "sy-1",
		Status:         models.AdmissionStatusPending,
	}
}

func acceptedAdmission(id string) models.Admission {
	a := pendingAdmission(id)
	a.Status = models.AdmissionStatusAccepted
	return a
}

func orgScope() models.TenantScope {
	return models.TenantScope{OrganizationID: "org-1"}
}

func TestAcceptThenRejectFails(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": pendingAdmission("adm-1")}}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{})

	accepted, err := svc.Accept(context.Background(), orgScope(), Actor{UserID: "u1"}, "adm-1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusAccepted, accepted.Status)
	assert.Equal(t, models.AdmissionStatusAccepted, store.admissions["adm-1"].Status)

	_, err = svc.Reject(context.Background(), orgScope(), Actor{UserID: "u1"}, "adm-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
}

func TestRejectIsTerminal(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": pendingAdmission("adm-1")}}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{})

	rejected, err := svc.Reject(context.Background(), orgScope(), Actor{}, "adm-1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusRejected, rejected.Status)

	_, err = svc.Accept(context.Background(), orgScope(), Actor{}, "adm-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
	_, err = svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
}

func TestAcceptLostRaceReportsPrecondition(t *testing.T) {
	store := &mockAdmissionStore{
		admissions:   map[string]models.Admission{"adm-1": pendingAdmission("adm-1")},
		forceCASMiss: true,
	}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{})

	_, err := svc.Accept(context.Background(), orgScope(), Actor{}, "adm-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
}

func TestAcceptOutsideScopeNotFound(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": pendingAdmission("adm-1")}}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{})

	_, err := svc.Accept(context.Background(), models.TenantScope{OrganizationID: "org-2"}, Actor{}, "adm-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.Accept(context.Background(), models.TenantScope{AllTenants: true}, Actor{}, "adm-1")
	assert.NoError(t, err)
}

func TestEnrollCreatesStudentAndFlipsStatus(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": acceptedAdmission("adm-1")}}
	students := &mockStudentStore{}
	checker := &stubChecker{}
	svc := newTestAdmissionService(store, students, checker, config.AdmissionsConfig{MinAgeYears: 3, MaxAgeYears: 100})

	email := "jane@x.com"
	dob := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	student, err := svc.Enroll(context.Background(), orgScope(), Actor{UserID: "u1"}, "adm-1", &models.EnrollmentDetails{
		Email:       &email,
		DateOfBirth: &dob,
	})
	require.NoError(t, err)
	require.NotNil(t, student)
	require.NotNil(t, student.AdmissionID)
	assert.Equal(t, "adm-1", *student.AdmissionID)
	assert.Equal(t, "org-1", student.OrganizationID)
	assert.Equal(t, "Jane", student.FirstName)
	require.NotNil(t, student.Email)
	assert.Equal(t, email, *student.Email)
	assert.Equal(t, models.AdmissionStatusEnrolled, store.admissions["adm-1"].Status)
	assert.Equal(t, 1, checker.called)

	// Re-invoking is safe: the existing student record wins.
	_, err = svc.Enroll(context.Background(), orgScope(), Actor{UserID: "u1"}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyProcessed.Code))
	assert.Len(t, students.created, 1)
}

func TestEnrollPendingAdmissionFails(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": pendingAdmission("adm-1")}}
	students := &mockStudentStore{}
	svc := newTestAdmissionService(store, students, &stubChecker{}, config.AdmissionsConfig{})

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
	assert.Empty(t, students.created)
}

func TestEnrollFutureDOBFailsBeforeChecks(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": acceptedAdmission("adm-1")}}
	students := &mockStudentStore{}
	checker := &stubChecker{}
	svc := newTestAdmissionService(store, students, checker, config.AdmissionsConfig{})

	tomorrow := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)
	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", &models.EnrollmentDetails{DateOfBirth: &tomorrow})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Zero(t, checker.called)
	assert.Empty(t, students.created)
	assert.Equal(t, models.AdmissionStatusAccepted, store.admissions["adm-1"].Status)
}

func TestEnrollDuplicateConflictWritesNothing(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": acceptedAdmission("adm-1")}}
	students := &mockStudentStore{}
	checker := &stubChecker{err: appErrors.Clone(appErrors.ErrDuplicate, "Jane Doe already has an active enrollment")}
	svc := newTestAdmissionService(store, students, checker, config.AdmissionsConfig{})

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicate.Code))
	assert.Empty(t, students.created)
	assert.Equal(t, models.AdmissionStatusAccepted, store.admissions["adm-1"].Status)
}

func TestEnrollRequiresStrongIdentifierWhenConfigured(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": acceptedAdmission("adm-1")}}
	checker := &stubChecker{}
	svc := newTestAdmissionService(store, &mockStudentStore{}, checker, config.AdmissionsConfig{RequireStrongIdentifier: true})

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Zero(t, checker.called)
}

func TestEnrollStrongIdentifierSatisfiedByAdmissionEmail(t *testing.T) {
	admission := acceptedAdmission("adm-1")
	email := "jane@x.com"
	admission.Email = &email
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": admission}}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{RequireStrongIdentifier: true})

	student, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.NoError(t, err)
	require.NotNil(t, student.Email)
	assert.Equal(t, email, *student.Email)
}

func TestEnrollRepairsStaleAcceptedStatus(t *testing.T) {
	admissionID := "adm-1"
	store := &mockAdmissionStore{admissions: map[string]models.Admission{admissionID: acceptedAdmission(admissionID)}}
	students := &mockStudentStore{byAdmission: map[string]models.Student{
		admissionID: {ID: "stu-1", AdmissionID: &admissionID},
	}}
	svc := newTestAdmissionService(store, students, &stubChecker{}, config.AdmissionsConfig{})

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, admissionID, nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyProcessed.Code))
	assert.Equal(t, models.AdmissionStatusEnrolled, store.admissions[admissionID].Status)
}

func TestEnrollUniqueViolationMeansAlreadyEnrolled(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": acceptedAdmission("adm-1")}}
	students := &mockStudentStore{
		createErr: &pq.Error{Code: "23505", Constraint: "students_admission_id_key"},
	}
	svc := newTestAdmissionService(store, students, &stubChecker{}, config.AdmissionsConfig{})

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyProcessed.Code))
	assert.Equal(t, models.AdmissionStatusEnrolled, store.admissions["adm-1"].Status)
}

func TestEnrollStatusFlipFailureIsDistinguished(t *testing.T) {
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": acceptedAdmission("adm-1")}}
	students := &mockStudentStore{}
	svc := newTestAdmissionService(store, students, &stubChecker{}, config.AdmissionsConfig{})

	// The student insert lands, then the status write starts failing.
	store.updateErr = errors.New("connection reset")

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEnrollmentIncomplete.Code))
	require.Len(t, students.created, 1)

	// The retry path repairs the stale status once the store recovers.
	store.updateErr = nil
	_, err = svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyProcessed.Code))
	assert.Equal(t, models.AdmissionStatusEnrolled, store.admissions["adm-1"].Status)
	assert.Len(t, students.created, 1)
}

func TestEnrollEnrolledWithoutStudentIsIncomplete(t *testing.T) {
	admission := acceptedAdmission("adm-1")
	admission.Status = models.AdmissionStatusEnrolled
	store := &mockAdmissionStore{admissions: map[string]models.Admission{"adm-1": admission}}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{})

	_, err := svc.Enroll(context.Background(), orgScope(), Actor{}, "adm-1", nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEnrollmentIncomplete.Code))
}

func TestCreateForcesTenantFromScope(t *testing.T) {
	store := &mockAdmissionStore{}
	svc := newTestAdmissionService(store, &mockStudentStore{}, &stubChecker{}, config.AdmissionsConfig{})

	admission, err := svc.Create(context.Background(), orgScope(), Actor{UserID: "u1"}, models.AdmissionCreateRequest{
		OrganizationID: "org-other",
		FirstName:      "Jane",
		LastName:       "Doe",
		SchoolID:       "school-1",
		ProgramID:      "program-1",
		SchoolYearID:   "sy-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", admission.OrganizationID)
	assert.Equal(t, models.AdmissionStatusPending, admission.Status)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/pkg/config"
	"github.com/cvbeltran/vschool-api/pkg/database"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

// studentAdmissionIndex is the unique index on students.admission_id. A
// violation of it is the canonical already-enrolled signal under concurrency.
const studentAdmissionIndex = "students_admission_id_key"

type admissionStore interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Admission, error)
	FindDetailByID(ctx context.Context, id string) (*models.AdmissionDetail, error)
	Create(ctx context.Context, admission *models.Admission) error
	UpdateStatus(ctx context.Context, id string, from, to models.AdmissionStatus) (bool, error)
}

type studentStore interface {
	FindByAdmission(ctx context.Context, admissionID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type duplicateGuard interface {
	Check(ctx context.Context, identity models.EnrollmentIdentity, scope models.TenantScope) error
}

// Actor identifies the user performing an operation, for the audit trail.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// AdmissionService governs the admission lifecycle. Status moves along
// PENDING -> ACCEPTED -> ENROLLED or PENDING -> REJECTED; every transition is
// a compare-and-swap on the current status so concurrent operators cannot
// replay or skip an edge.
type AdmissionService struct {
	admissions admissionStore
	students   studentStore
	checker    duplicateGuard
	audit      *AuditService
	metrics    *MetricsService
	cfg        config.AdmissionsConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdmissionService constructs the service.
func NewAdmissionService(admissions admissionStore, students studentStore, checker duplicateGuard, audit *AuditService, metrics *MetricsService, cfg config.AdmissionsConfig, logger *zap.Logger) *AdmissionService {
	return &AdmissionService{
		admissions: admissions,
		students:   students,
		checker:    checker,
		audit:      audit,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns admissions visible to the caller's tenant scope.
func (s *AdmissionService) List(ctx context.Context, scope models.TenantScope, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error) {
	if !scope.AllTenants {
		filter.OrganizationID = scope.OrganizationID
	}
	return s.admissions.List(ctx, filter)
}

// Get returns one admission. Records outside the caller's scope are reported
// as not found.
func (s *AdmissionService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.AdmissionDetail, error) {
	detail, err := s.admissions.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, fmt.Errorf("get admission: %w", err)
	}
	if !scope.Allows(detail.OrganizationID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
	}
	return detail, nil
}

// Create registers a new application in PENDING state.
func (s *AdmissionService) Create(ctx context.Context, scope models.TenantScope, actor Actor, req models.AdmissionCreateRequest) (*models.Admission, error) {
	organizationID := req.OrganizationID
	if !scope.AllTenants {
		organizationID = scope.OrganizationID
	}
	if organizationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organization_id is required")
	}

	admission := &models.Admission{
		OrganizationID: organizationID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		SchoolID:       req.SchoolID,
		ProgramID:      req.ProgramID,
		SectionID:      req.SectionID,
		SchoolYearID:   req.SchoolYearID,
		Status:         models.AdmissionStatusPending,
	}
	if err := s.admissions.Create(ctx, admission); err != nil {
		return nil, err
	}

	s.recordAudit(actor, models.AuditActionAdmissionCreate, admission.ID, nil, admission)
	return admission, nil
}

// Accept moves a PENDING admission to ACCEPTED. It carries no side effects
// beyond the status write.
func (s *AdmissionService) Accept(ctx context.Context, scope models.TenantScope, actor Actor, id string) (*models.Admission, error) {
	return s.transition(ctx, scope, actor, id, models.AdmissionStatusPending, models.AdmissionStatusAccepted, models.AuditActionAdmissionAccept, "accept")
}

// Reject moves a PENDING admission to REJECTED, a terminal state.
func (s *AdmissionService) Reject(ctx context.Context, scope models.TenantScope, actor Actor, id string) (*models.Admission, error) {
	return s.transition(ctx, scope, actor, id, models.AdmissionStatusPending, models.AdmissionStatusRejected, models.AuditActionAdmissionReject, "reject")
}

func (s *AdmissionService) transition(ctx context.Context, scope models.TenantScope, actor Actor, id string, from, to models.AdmissionStatus, auditAction, metricName string) (*models.Admission, error) {
	admission, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		s.recordTransition(metricName, "error")
		return nil, err
	}

	if admission.Status != from {
		s.recordTransition(metricName, "precondition")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("admission is %s, expected %s", admission.Status, from))
	}

	ok, err := s.admissions.UpdateStatus(ctx, id, from, to)
	if err != nil {
		s.recordTransition(metricName, "error")
		return nil, err
	}
	if !ok {
		// Lost a race: someone transitioned the admission between the read
		// and the write. The stored status is authoritative.
		s.recordTransition(metricName, "precondition")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("admission is no longer %s", from))
	}

	old := *admission
	admission.Status = to
	admission.UpdatedAt = s.now().UTC()

	s.recordTransition(metricName, "ok")
	s.recordAudit(actor, auditAction, id, &old, admission)
	return admission, nil
}

// Enroll completes an ACCEPTED admission: it validates the supplied details,
// re-checks the one-student-per-admission invariant against the store, runs
// duplicate detection, creates the student and flips the status to ENROLLED.
//
// The student insert happens before the status flip. If the flip then fails,
// the admission reads ACCEPTED while its student already exists; a retried
// Enroll detects that state and repairs the status instead of inserting a
// second student.
func (s *AdmissionService) Enroll(ctx context.Context, scope models.TenantScope, actor Actor, id string, details *models.EnrollmentDetails) (*models.Student, error) {
	admission, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		s.recordTransition("enroll", "error")
		return nil, err
	}

	if admission.Status != models.AdmissionStatusAccepted {
		return nil, s.enrollPreconditionError(ctx, admission)
	}

	if details == nil {
		details = &models.EnrollmentDetails{}
	}
	if err := validateEnrollmentDetails(details, s.cfg, s.now()); err != nil {
		s.recordTransition("enroll", "validation")
		return nil, err
	}

	email := details.Email
	if email == nil {
		email = admission.Email
	}

	if s.cfg.RequireStrongIdentifier && email == nil && details.DateOfBirth == nil {
		s.recordTransition("enroll", "validation")
		return nil, appErrors.Clone(appErrors.ErrValidation,
			"an email or date of birth is required to enroll")
	}

	// Authoritative 1:1 check, independent of the status read above. A
	// student referencing the admission means the enrollment already
	// happened, whatever the status column says.
	existing, err := s.students.FindByAdmission(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.recordTransition("enroll", "error")
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if existing != nil && err == nil {
		s.repairStatus(ctx, id)
		s.recordTransition("enroll", "already_processed")
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "admission is already enrolled")
	}

	identity := models.EnrollmentIdentity{
		FirstName:    admission.FirstName,
		LastName:     admission.LastName,
		Email:        email,
		DateOfBirth:  details.DateOfBirth,
		SchoolYearID: admission.SchoolYearID,
		ProgramID:    admission.ProgramID,
	}
	if err := s.checker.Check(ctx, identity, scope); err != nil {
		if appErrors.HasCode(err, appErrors.ErrDuplicate.Code) {
			s.recordTransition("enroll", "duplicate")
			s.recordAudit(actor, models.AuditActionEnrollmentDenied, id, nil, map[string]string{
				"reason": err.Error(),
			})
		} else {
			s.recordTransition("enroll", "error")
		}
		return nil, err
	}

	student := &models.Student{
		OrganizationID: admission.OrganizationID,
		AdmissionID:    &admission.ID,
		FirstName:      admission.FirstName,
		LastName:       admission.LastName,
		LegalFirstName: admission.FirstName,
		LegalLastName:  admission.LastName,
		MiddleInitial:  details.MiddleInitial,
		Email:          email,
		DateOfBirth:    details.DateOfBirth,
	}
	if err := s.students.Create(ctx, student); err != nil {
		if database.IsUniqueViolation(err, studentAdmissionIndex) {
			// A concurrent Enroll landed its insert first.
			s.repairStatus(ctx, id)
			s.recordTransition("enroll", "already_processed")
			return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "admission is already enrolled")
		}
		s.recordTransition("enroll", "error")
		return nil, err
	}

	ok, err := s.admissions.UpdateStatus(ctx, id, models.AdmissionStatusAccepted, models.AdmissionStatusEnrolled)
	if err != nil {
		s.recordTransition("enroll", "incomplete")
		return nil, appErrors.Wrap(err, appErrors.ErrEnrollmentIncomplete.Code, appErrors.ErrEnrollmentIncomplete.Status,
			"student created but status update failed; retry to repair")
	}
	if !ok {
		current, readErr := s.admissions.FindByID(ctx, id)
		if readErr == nil && current.Status == models.AdmissionStatusEnrolled {
			// Someone repaired the status for us.
			ok = true
		}
	}
	if !ok {
		s.recordTransition("enroll", "incomplete")
		return nil, appErrors.Clone(appErrors.ErrEnrollmentIncomplete,
			"student created but admission status could not be updated")
	}

	s.recordTransition("enroll", "ok")
	s.recordAudit(actor, models.AuditActionAdmissionEnroll, id, admission, student)
	if s.logger != nil {
		s.logger.Info("admission enrolled",
			zap.String("admission_id", id),
			zap.String("student_id", student.ID),
			zap.String("organization_id", admission.OrganizationID))
	}
	return student, nil
}

// enrollPreconditionError classifies an Enroll attempt on a non-ACCEPTED
// admission. An ENROLLED admission with its student present is reported as
// already processed; one without a student is the partially-completed state
// that needs operator attention.
func (s *AdmissionService) enrollPreconditionError(ctx context.Context, admission *models.Admission) error {
	if admission.Status == models.AdmissionStatusEnrolled {
		_, err := s.students.FindByAdmission(ctx, admission.ID)
		if err == nil {
			s.recordTransition("enroll", "already_processed")
			return appErrors.Clone(appErrors.ErrAlreadyProcessed, "admission is already enrolled")
		}
		if errors.Is(err, sql.ErrNoRows) {
			s.recordTransition("enroll", "incomplete")
			return appErrors.Clone(appErrors.ErrEnrollmentIncomplete,
				"admission is marked enrolled but no student record exists")
		}
		s.recordTransition("enroll", "error")
		return fmt.Errorf("check existing enrollment: %w", err)
	}
	s.recordTransition("enroll", "precondition")
	return appErrors.Clone(appErrors.ErrPreconditionFailed,
		fmt.Sprintf("admission is %s, expected %s", admission.Status, models.AdmissionStatusAccepted))
}

// repairStatus flips a stale ACCEPTED status to ENROLLED once the student
// record is known to exist. Best effort; a failed repair is retried by the
// next Enroll attempt.
func (s *AdmissionService) repairStatus(ctx context.Context, id string) {
	ok, err := s.admissions.UpdateStatus(ctx, id, models.AdmissionStatusAccepted, models.AdmissionStatusEnrolled)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("status repair failed", zap.String("admission_id", id), zap.Error(err))
		}
		return
	}
	if ok && s.logger != nil {
		s.logger.Info("repaired stale admission status", zap.String("admission_id", id))
	}
}

func (s *AdmissionService) loadScoped(ctx context.Context, scope models.TenantScope, id string) (*models.Admission, error) {
	admission, err := s.admissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, fmt.Errorf("find admission: %w", err)
	}
	if !scope.Allows(admission.OrganizationID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
	}
	return admission, nil
}

func (s *AdmissionService) recordTransition(transition, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(transition, outcome)
	}
}

func (s *AdmissionService) recordAudit(actor Actor, action, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor.UserID != "" {
		userID = &actor.UserID
	}
	s.audit.RecordChange(models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "admissions",
		ResourceID: &resourceID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}, oldValues, newValues)
}

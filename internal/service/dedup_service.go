package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type cohortLister interface {
	ListEnrolledCohort(ctx context.Context, schoolYearID, programID, organizationID string) ([]models.CohortCandidate, error)
}

type identityScanner interface {
	ListByName(ctx context.Context, firstName, lastName string) ([]models.StudentIdentity, error)
}

type lifecycleResolver interface {
	LifecycleCode(ctx context.Context, schoolYearID string) (string, error)
}

// DuplicateChecker decides whether a prospective enrollment collides with an
// existing enrollment in the same cohort or with a known student identity
// anywhere in the system. Either check vetoes on its own.
type DuplicateChecker struct {
	admissions  cohortLister
	students    identityScanner
	schoolYears lifecycleResolver
	logger      *zap.Logger
}

// NewDuplicateChecker constructs the checker.
func NewDuplicateChecker(admissions cohortLister, students identityScanner, schoolYears lifecycleResolver, logger *zap.Logger) *DuplicateChecker {
	return &DuplicateChecker{admissions: admissions, students: students, schoolYears: schoolYears, logger: logger}
}

// Check runs both duplicate checks for the applicant identity. It returns a
// DUPLICATE_ENROLLMENT error when either check vetoes, nil when the applicant
// is clear, and a wrapped store error when a lookup fails.
//
// When the applicant supplies neither an email nor a date of birth, a bare
// name match counts as a duplicate. Without a strong identifier the system
// cannot tell two same-named people apart, so it forces manual review rather
// than risk a silent duplicate.
func (c *DuplicateChecker) Check(ctx context.Context, identity models.EnrollmentIdentity, scope models.TenantScope) error {
	if err := c.checkCohort(ctx, identity, scope); err != nil {
		return err
	}
	return c.checkGlobalIdentity(ctx, identity)
}

// checkCohort scans enrolled admissions sharing the school year and program
// within the caller's tenant scope. Matches only block while the school year
// is still open; once its lifecycle code resolves to INACTIVE, re-enrollment
// of the same identity is legitimate.
func (c *DuplicateChecker) checkCohort(ctx context.Context, identity models.EnrollmentIdentity, scope models.TenantScope) error {
	organizationID := scope.OrganizationID
	if scope.AllTenants {
		organizationID = ""
	}

	candidates, err := c.admissions.ListEnrolledCohort(ctx, identity.SchoolYearID, identity.ProgramID, organizationID)
	if err != nil {
		return fmt.Errorf("cohort duplicate check: %w", err)
	}

	first := normalizeName(identity.FirstName)
	last := normalizeName(identity.LastName)
	email := normalizeEmail(identity.Email)
	bareName := email == "" && identity.DateOfBirth == nil

	var matched *models.CohortCandidate
	for i := range candidates {
		candidate := &candidates[i]
		if normalizeName(candidate.FirstName) != first || normalizeName(candidate.LastName) != last {
			continue
		}
		if bareName ||
			(email != "" && email == normalizeEmail(candidate.Email)) ||
			sameDate(identity.DateOfBirth, candidate.DateOfBirth) {
			matched = candidate
			break
		}
	}
	if matched == nil {
		return nil
	}

	code, err := c.schoolYears.LifecycleCode(ctx, identity.SchoolYearID)
	if err != nil {
		return fmt.Errorf("resolve school year lifecycle: %w", err)
	}
	if code == models.SchoolYearStatusInactive {
		if c.logger != nil {
			c.logger.Info("cohort match ignored for concluded school year",
				zap.String("admission_id", matched.AdmissionID),
				zap.String("school_year_id", identity.SchoolYearID))
		}
		return nil
	}

	return appErrors.Clone(appErrors.ErrDuplicate,
		fmt.Sprintf("%s %s already has an active enrollment in this school year and program", matched.FirstName, matched.LastName))
}

// checkGlobalIdentity scans students across every organization. The scan
// deliberately crosses tenant boundaries so the same person cannot enroll
// under two organizations; a match blocks unconditionally.
func (c *DuplicateChecker) checkGlobalIdentity(ctx context.Context, identity models.EnrollmentIdentity) error {
	candidates, err := c.students.ListByName(ctx, identity.FirstName, identity.LastName)
	if err != nil {
		return fmt.Errorf("global identity duplicate check: %w", err)
	}

	email := normalizeEmail(identity.Email)
	bareName := email == "" && identity.DateOfBirth == nil

	for i := range candidates {
		candidate := &candidates[i]
		if bareName ||
			(email != "" && email == normalizeEmail(candidate.Email)) ||
			sameDate(identity.DateOfBirth, candidate.DateOfBirth) {
			message := fmt.Sprintf("a student named %s %s already exists", candidate.FirstName, candidate.LastName)
			if candidate.OrganizationName != "" {
				message = fmt.Sprintf("%s in organization %s", message, candidate.OrganizationName)
			}
			return appErrors.Clone(appErrors.ErrDuplicate, message)
		}
	}
	return nil
}

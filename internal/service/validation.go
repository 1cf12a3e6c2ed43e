package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/pkg/config"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

// emailShape accepts local@domain.tld. Intentionally loose; the goal is to
// catch obviously malformed addresses, not to validate deliverability.
var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validateEnrollmentDetails checks the optional identity attributes supplied
// at enrollment time and normalises them in place. The middle initial is
// upper-cased, the email trimmed. Age bounds are inclusive and computed on
// calendar dates, not day counts.
func validateEnrollmentDetails(details *models.EnrollmentDetails, cfg config.AdmissionsConfig, now time.Time) error {
	if details == nil {
		return nil
	}

	if details.Email != nil {
		trimmed := strings.TrimSpace(*details.Email)
		if !emailShape.MatchString(trimmed) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("email %q is not a valid address", trimmed))
		}
		details.Email = &trimmed
	}

	if details.DateOfBirth != nil {
		if err := validateDateOfBirth(*details.DateOfBirth, cfg, now); err != nil {
			return err
		}
	}

	if details.MiddleInitial != nil {
		initial := strings.ToUpper(strings.TrimSpace(*details.MiddleInitial))
		if initial == "" {
			details.MiddleInitial = nil
		} else {
			if len([]rune(initial)) != 1 {
				return appErrors.Clone(appErrors.ErrValidation, "middle initial must be a single character")
			}
			details.MiddleInitial = &initial
		}
	}

	return nil
}

// validateDateOfBirth enforces the inclusive [min, max] age window. A person
// is exactly min years old on their min-th birthday, so the latest acceptable
// date of birth is today minus min years; the earliest is today minus max
// years. Comparing dates directly keeps the boundary days inclusive.
func validateDateOfBirth(dob time.Time, cfg config.AdmissionsConfig, now time.Time) error {
	today := truncateToDate(now)
	birth := truncateToDate(dob)

	if birth.After(today) {
		return appErrors.Clone(appErrors.ErrValidation, "date of birth cannot be in the future")
	}

	minYears := cfg.MinAgeYears
	if minYears <= 0 {
		minYears = 3
	}
	maxYears := cfg.MaxAgeYears
	if maxYears <= 0 {
		maxYears = 100
	}

	latest := today.AddDate(-minYears, 0, 0)
	if birth.After(latest) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("applicant must be at least %d years old", minYears))
	}

	earliest := today.AddDate(-maxYears, 0, 0)
	if birth.Before(earliest) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("applicant cannot be older than %d years", maxYears))
	}

	return nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// normalizeName folds case and trims surrounding whitespace so "  Jane " and
// "jane" compare equal.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeEmail(email *string) string {
	if email == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*email))
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

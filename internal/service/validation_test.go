package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/pkg/config"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

var validationNow = time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

func TestValidateEnrollmentDetailsEmail(t *testing.T) {
	cases := []struct {
		email string
		valid bool
	}{
		{"a@b.c", true},
		{"jane.doe@school.edu", true},
		{"  jane@x.com  ", true},
		{"a@b", false},
		{"a b@x.com", false},
		{"@x.com", false},
		{"jane@", false},
	}

	for _, tc := range cases {
		email := tc.email
		details := &models.EnrollmentDetails{Email: &email}
		err := validateEnrollmentDetails(details, config.AdmissionsConfig{}, validationNow)
		if tc.valid {
			assert.NoError(t, err, "email %q", tc.email)
		} else {
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code), "email %q", tc.email)
		}
	}
}

func TestValidateEnrollmentDetailsTrimsEmail(t *testing.T) {
	email := "  jane@x.com  "
	details := &models.EnrollmentDetails{Email: &email}
	require.NoError(t, validateEnrollmentDetails(details, config.AdmissionsConfig{}, validationNow))
	assert.Equal(t, "jane@x.com", *details.Email)
}

func TestValidateDateOfBirthBounds(t *testing.T) {
	cfg := config.AdmissionsConfig{MinAgeYears: 3, MaxAgeYears: 100}

	cases := []struct {
		name  string
		dob   time.Time
		valid bool
	}{
		{"future", time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC), false},
		{"exactly three years old today", time.Date(2023, time.August, 28, 0, 0, 0, 0, time.UTC), true},
		{"one day short of three", time.Date(2023, time.August, 29, 0, 0, 0, 0, time.UTC), false},
		{"exactly one hundred", time.Date(1926, time.August, 28, 0, 0, 0, 0, time.UTC), true},
		{"one day past one hundred", time.Date(1926, time.August, 27, 0, 0, 0, 0, time.UTC), false},
		{"ordinary child", time.Date(2018, time.February, 14, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateDateOfBirth(tc.dob, cfg, validationNow)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
			}
		})
	}
}

func TestValidateDateOfBirthDefaults(t *testing.T) {
	// Unset bounds fall back to 3 and 100.
	err := validateDateOfBirth(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), config.AdmissionsConfig{}, validationNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	err = validateDateOfBirth(time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC), config.AdmissionsConfig{}, validationNow)
	assert.NoError(t, err)
}

func TestValidateEnrollmentDetailsMiddleInitial(t *testing.T) {
	m := "m"
	details := &models.EnrollmentDetails{MiddleInitial: &m}
	require.NoError(t, validateEnrollmentDetails(details, config.AdmissionsConfig{}, validationNow))
	assert.Equal(t, "M", *details.MiddleInitial)

	blank := "   "
	details = &models.EnrollmentDetails{MiddleInitial: &blank}
	require.NoError(t, validateEnrollmentDetails(details, config.AdmissionsConfig{}, validationNow))
	assert.Nil(t, details.MiddleInitial)

	long := "ab"
	details = &models.EnrollmentDetails{MiddleInitial: &long}
	err := validateEnrollmentDetails(details, config.AdmissionsConfig{}, validationNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestValidateEnrollmentDetailsNil(t *testing.T) {
	assert.NoError(t, validateEnrollmentDetails(nil, config.AdmissionsConfig{}, validationNow))
}

func TestSameDate(t *testing.T) {
	a := time.Date(2015, time.March, 2, 0, 0, 0, 0, time.UTC)
	b := time.Date(2015, time.March, 2, 23, 59, 0, 0, time.FixedZone("X", 8*3600))
	assert.True(t, sameDate(&a, &b))
	assert.False(t, sameDate(&a, nil))
	assert.False(t, sameDate(nil, nil))
}

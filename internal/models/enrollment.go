package models

import "time"

// EnrollmentDetails carries the optional identity attributes supplied at
// enrollment time. They are not necessarily present on the admission record.
type EnrollmentDetails struct {
	Email         *string    `json:"email,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	MiddleInitial *string    `json:"middle_initial,omitempty"`
}

// EnrollmentRequest is the wire form of EnrollmentDetails. The date of birth
// is an ISO date string parsed by the handler.
type EnrollmentRequest struct {
	Email         *string `json:"email,omitempty" validate:"omitempty,max=254"`
	DateOfBirth   *string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MiddleInitial *string `json:"middle_initial,omitempty" validate:"omitempty,max=8"`
}

// AdmissionCreateRequest is the intake payload for a new application.
type AdmissionCreateRequest struct {
	OrganizationID string  `json:"organization_id" validate:"omitempty,uuid4"`
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	Email          *string `json:"email,omitempty" validate:"omitempty,max=254"`
	SchoolID       string  `json:"school_id" validate:"required"`
	ProgramID      string  `json:"program_id" validate:"required"`
	SectionID      *string `json:"section_id,omitempty"`
	SchoolYearID   string  `json:"school_year_id" validate:"required"`
}

// EnrollmentIdentity is the applicant identity handed to duplicate detection.
type EnrollmentIdentity struct {
	FirstName    string
	LastName     string
	Email        *string
	DateOfBirth  *time.Time
	SchoolYearID string
	ProgramID    string
}

package models

import "time"

// AdmissionStatus represents the lifecycle of an admission application.
type AdmissionStatus string

// Admission statuses. Transitions are PENDING -> ACCEPTED -> ENROLLED and
// PENDING -> REJECTED; ENROLLED and REJECTED are terminal.
const (
	AdmissionStatusPending  AdmissionStatus = "PENDING"
	AdmissionStatusAccepted AdmissionStatus = "ACCEPTED"
	AdmissionStatusRejected AdmissionStatus = "REJECTED"
	AdmissionStatusEnrolled AdmissionStatus = "ENROLLED"
)

// Admission captures an application to enroll into a program for a school year.
type Admission struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	FirstName      string          `db:"first_name" json:"first_name"`
	LastName       string          `db:"last_name" json:"last_name"`
	Email          *string         `db:"email" json:"email,omitempty"`
	SchoolID       string          `db:"school_id" json:"school_id"`
	ProgramID      string          `db:"program_id" json:"program_id"`
	SectionID      *string         `db:"section_id" json:"section_id,omitempty"`
	SchoolYearID   string          `db:"school_year_id" json:"school_year_id"`
	Status         AdmissionStatus `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// AdmissionDetail enriches Admission with contextual names.
type AdmissionDetail struct {
	Admission
	OrganizationName string  `db:"organization_name" json:"organization_name"`
	SchoolYearName   string  `db:"school_year_name" json:"school_year_name"`
	StudentID        *string `db:"student_id" json:"student_id,omitempty"`
}

// AdmissionFilter provides filters for listing admissions.
type AdmissionFilter struct {
	OrganizationID string
	SchoolID       string
	ProgramID      string
	SchoolYearID   string
	Status         AdmissionStatus
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// CohortCandidate is an enrolled admission considered during duplicate
// detection for the same school year and program. The date of birth is joined
// through the student record the admission produced.
type CohortCandidate struct {
	AdmissionID      string     `db:"admission_id" json:"admission_id"`
	OrganizationID   string     `db:"organization_id" json:"organization_id"`
	OrganizationName string     `db:"organization_name" json:"organization_name"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	Email            *string    `db:"email" json:"email,omitempty"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

package models

import "time"

// Student represents a learner materialized by a successful enrollment.
type Student struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	AdmissionID    *string    `db:"admission_id" json:"admission_id,omitempty"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	LegalFirstName string     `db:"legal_first_name" json:"legal_first_name"`
	LegalLastName  string     `db:"legal_last_name" json:"legal_last_name"`
	MiddleInitial  *string    `db:"middle_initial" json:"middle_initial,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains student information with organization context.
type StudentDetail struct {
	Student
	OrganizationName string `db:"organization_name" json:"organization_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	OrganizationID string
	Search         string
	SchoolYearID   string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// StudentIdentity is a candidate considered during the global identity
// duplicate check. The check deliberately crosses tenant boundaries, so the
// owning organization is carried for error reporting.
type StudentIdentity struct {
	StudentID        string     `db:"student_id" json:"student_id"`
	OrganizationID   string     `db:"organization_id" json:"organization_id"`
	OrganizationName string     `db:"organization_name" json:"organization_name"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	Email            *string    `db:"email" json:"email,omitempty"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

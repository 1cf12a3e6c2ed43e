package models

import "time"

// SchoolYearStatusInactive is the single lifecycle code that marks a school
// year as concluded. A concluded year lifts the same-cohort duplicate block;
// every other code (or an unset one) keeps it in place.
const SchoolYearStatusInactive = "INACTIVE"

// SchoolYear models an academic year. Its lifecycle status is a taxonomy
// reference so operators can extend the set of codes at run time.
type SchoolYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StatusID  *string   `db:"status_id" json:"status_id,omitempty"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolYearDetail enriches SchoolYear with the resolved taxonomy code.
type SchoolYearDetail struct {
	SchoolYear
	StatusCode  *string `db:"status_code" json:"status_code,omitempty"`
	StatusLabel *string `db:"status_label" json:"status_label,omitempty"`
}

// SchoolYearFilter defines filters supported by list endpoints.
type SchoolYearFilter struct {
	StatusCode string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

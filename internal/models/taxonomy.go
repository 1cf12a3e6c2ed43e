package models

import "time"

// Well-known taxonomy categories. Categories are free-form; these are the
// ones the core consumes directly.
const (
	TaxonomyCategorySchoolYearStatus = "SCHOOL_YEAR_STATUS"
	TaxonomyCategoryRelationshipType = "RELATIONSHIP_TYPE"
	TaxonomyCategoryGradeLevel       = "GRADE_LEVEL"
)

// Taxonomy is a configurable enumeration entry (code -> label). Entries may
// be global or scoped to a single organization.
type Taxonomy struct {
	ID             string    `db:"id" json:"id"`
	Category       string    `db:"category" json:"category"`
	Code           string    `db:"code" json:"code"`
	Label          string    `db:"label" json:"label"`
	Active         bool      `db:"active" json:"active"`
	SortOrder      int       `db:"sort_order" json:"sort_order"`
	OrganizationID *string   `db:"organization_id" json:"organization_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TaxonomyFilter provides filters for listing taxonomy entries.
type TaxonomyFilter struct {
	Category       string
	Active         *bool
	OrganizationID string
	Page           int
	PageSize       int
}

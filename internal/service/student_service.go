package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
)

type studentReader interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// StudentService exposes read access to enrolled students. Students are only
// ever created through the enrollment workflow.
type StudentService struct {
	repo studentReader
}

// NewStudentService constructs the service.
func NewStudentService(repo studentReader) *StudentService {
	return &StudentService{repo: repo}
}

// List returns students visible to the caller's tenant scope.
func (s *StudentService) List(ctx context.Context, scope models.TenantScope, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	if !scope.AllTenants {
		filter.OrganizationID = scope.OrganizationID
	}
	return s.repo.List(ctx, filter)
}

// Get returns one student. Records outside the caller's scope are reported as
// not found.
func (s *StudentService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	if !scope.Allows(student.OrganizationID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

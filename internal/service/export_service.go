package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cvbeltran/vschool-api/internal/models"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
	"github.com/cvbeltran/vschool-api/pkg/export"
	"github.com/cvbeltran/vschool-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, filePath string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, finishedAt time.Time) error
}

type exportAdmissionSource interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionDetail, int, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

type urlSigner interface {
	Generate(exportID, relPath string) (string, time.Time, error)
	Parse(token string) (exportID, relPath string, expiresAt time.Time, err error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportService generates register exports asynchronously. Requests enqueue a
// job; workers render the register into CSV or PDF, store the file on disk
// and record its path. Finished jobs are downloaded via a signed URL.
type ExportService struct {
	repo       exportJobStore
	admissions exportAdmissionSource
	queue      *jobs.Queue
	storage    exportStorage
	signer     urlSigner
	csv        tableRenderer
	pdf        tableRenderer
	logger     *zap.Logger
}

// NewExportService constructs the service. Attach the queue with SetQueue
// after construction; the queue handler closes over the service.
func NewExportService(repo exportJobStore, admissions exportAdmissionSource, storage exportStorage, signer urlSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:       repo,
		admissions: admissions,
		storage:    storage,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// SetQueue wires the background queue used for processing.
func (s *ExportService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Enqueue validates the request, persists a queued job and dispatches it.
func (s *ExportService) Enqueue(ctx context.Context, scope models.TenantScope, actor Actor, register models.ExportRegister, params models.ExportJobParams) (*models.ExportJob, error) {
	switch register {
	case models.ExportRegisterAdmissions, models.ExportRegisterEnrolled:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown register %q", register))
	}
	switch params.Format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	case "":
		params.Format = models.ExportFormatCSV
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown format %q", params.Format))
	}
	if !scope.AllTenants {
		params.OrganizationID = scope.OrganizationID
	}

	job := &models.ExportJob{
		Register:  register,
		Params:    params,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is not running")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(register), Payload: job.ID}); err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue", now); markErr != nil {
			s.logger.Warn("failed to mark export job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return job, nil
}

// Status returns a job with a signed download URL when the file is ready.
// Callers only see their own jobs unless they hold the all-tenants scope.
func (s *ExportService) Status(ctx context.Context, scope models.TenantScope, actor Actor, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, fmt.Errorf("get export job: %w", err)
	}
	if !scope.AllTenants && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}

	if job.Status == models.ExportStatusFinished && job.FilePath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign download url", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			url := "/api/v1/exports/download?token=" + token
			job.DownloadURL = &url
		}
	}
	return job, nil
}

// ResolveDownload validates a signed token and returns the absolute file path.
func (s *ExportService) ResolveDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	return s.storage.Path(relPath), nil
}

// HandleJob is the queue handler. The payload is the export job id; the job
// row in the database is the source of truth for parameters.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		s.logger.Error("export job with invalid payload", zap.String("queue_job_id", job.ID))
		return nil
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if record.Status == models.ExportStatusFinished || record.Status == models.ExportStatusFailed {
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	table, err := s.buildTable(ctx, record)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}

	renderer := s.csv
	extension := "csv"
	if record.Params.Format == models.ExportFormatPDF {
		renderer = s.pdf
		extension = "pdf"
	}
	data, err := renderer.Render(table)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}

	filename := fmt.Sprintf("%s/%s-%s.%s", record.Register, record.Register, record.ID, extension)
	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}

	if err := s.repo.MarkFinished(ctx, jobID, relPath, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("export finished",
		zap.String("job_id", jobID),
		zap.String("register", string(record.Register)),
		zap.String("file", relPath))
	return nil
}

func (s *ExportService) failJob(ctx context.Context, jobID string, cause error) {
	s.logger.Error("export failed", zap.String("job_id", jobID), zap.Error(cause))
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ExportService) buildTable(ctx context.Context, record *models.ExportJob) (export.Table, error) {
	filter := models.AdmissionFilter{
		OrganizationID: record.Params.OrganizationID,
		SchoolYearID:   record.Params.SchoolYearID,
		ProgramID:      record.Params.ProgramID,
		PageSize:       100,
		SortBy:         "last_name",
		SortOrder:      "ASC",
	}
	if record.Register == models.ExportRegisterEnrolled {
		filter.Status = models.AdmissionStatusEnrolled
	}

	table := export.Table{
		Title:   fmt.Sprintf("%s register", record.Register),
		Columns: []string{"Last Name", "First Name", "Email", "Status", "School Year", "Organization", "Applied At"},
	}

	for page := 1; ; page++ {
		filter.Page = page
		admissions, total, err := s.admissions.List(ctx, filter)
		if err != nil {
			return export.Table{}, fmt.Errorf("load %s register: %w", record.Register, err)
		}
		for _, admission := range admissions {
			email := ""
			if admission.Email != nil {
				email = *admission.Email
			}
			table.Rows = append(table.Rows, []string{
				admission.LastName,
				admission.FirstName,
				email,
				string(admission.Status),
				admission.SchoolYearName,
				admission.OrganizationName,
				admission.CreatedAt.Format("2006-01-02"),
			})
		}
		if len(table.Rows) >= total || len(admissions) == 0 {
			break
		}
	}
	return table, nil
}

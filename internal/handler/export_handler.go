package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/internal/service"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
	"github.com/cvbeltran/vschool-api/pkg/response"
)

// ExportHandler exposes asynchronous register export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type createExportRequest struct {
	Register     string `json:"register" validate:"required"`
	Format       string `json:"format,omitempty"`
	SchoolYearID string `json:"school_year_id,omitempty"`
	ProgramID    string `json:"program_id,omitempty"`
}

// Create godoc
// @Summary Queue a register export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body createExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	job, err := h.exports.Enqueue(c.Request.Context(), scopeFromContext(c), actorFromContext(c),
		models.ExportRegister(req.Register), models.ExportJobParams{
			Format:       models.ExportFormat(req.Format),
			SchoolYearID: req.SchoolYearID,
			ProgramID:    req.ProgramID,
		})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get an export job's status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(c.Request.Context(), scopeFromContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	path, err := h.exports.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

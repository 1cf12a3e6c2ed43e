package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/internal/service"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
	"github.com/cvbeltran/vschool-api/pkg/response"
)

// AdmissionHandler exposes the admission lifecycle endpoints.
type AdmissionHandler struct {
	admissions *service.AdmissionService
	validate   *validator.Validate
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions *service.AdmissionService, validate *validator.Validate) *AdmissionHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionHandler{admissions: admissions, validate: validate}
}

// List godoc
// @Summary List admissions
// @Tags Admissions
// @Produce json
// @Param status query string false "Filter by status"
// @Param schoolYearId query string false "Filter by school year"
// @Param programId query string false "Filter by program"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.AdmissionFilter
	filter.Status = models.AdmissionStatus(strings.ToUpper(c.Query("status")))
	filter.SchoolYearID = c.Query("schoolYearId")
	filter.ProgramID = c.Query("programId")
	filter.SchoolID = c.Query("schoolId")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	admissions, total, err := h.admissions.List(c.Request.Context(), scopeFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get admission detail
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	admission, err := h.admissions.Get(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Create godoc
// @Summary Register a new admission application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body models.AdmissionCreateRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req models.AdmissionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admission payload"))
		return
	}

	admission, err := h.admissions.Create(c.Request.Context(), scopeFromContext(c), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admission)
}

// Accept godoc
// @Summary Accept a pending admission
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/accept [post]
func (h *AdmissionHandler) Accept(c *gin.Context) {
	admission, err := h.admissions.Accept(c.Request.Context(), scopeFromContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Reject godoc
// @Summary Reject a pending admission
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/reject [post]
func (h *AdmissionHandler) Reject(c *gin.Context) {
	admission, err := h.admissions.Reject(c.Request.Context(), scopeFromContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Enroll godoc
// @Summary Enroll an accepted admission
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body models.EnrollmentRequest false "Enrollment details"
// @Success 201 {object} response.Envelope
// @Router /admissions/{id}/enroll [post]
func (h *AdmissionHandler) Enroll(c *gin.Context) {
	var req models.EnrollmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
			return
		}
	}

	details, err := enrollmentDetailsFromRequest(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	student, err := h.admissions.Enroll(c.Request.Context(), scopeFromContext(c), actorFromContext(c), c.Param("id"), details)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

func enrollmentDetailsFromRequest(req models.EnrollmentRequest) (*models.EnrollmentDetails, error) {
	details := &models.EnrollmentDetails{
		Email:         req.Email,
		MiddleInitial: req.MiddleInitial,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date_of_birth must be formatted YYYY-MM-DD")
		}
		details.DateOfBirth = &dob
	}
	return details, nil
}

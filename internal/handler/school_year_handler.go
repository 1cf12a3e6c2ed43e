package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/internal/service"
	"github.com/cvbeltran/vschool-api/pkg/response"
)

// SchoolYearHandler exposes school year endpoints.
type SchoolYearHandler struct {
	schoolYears *service.SchoolYearService
}

// NewSchoolYearHandler constructs SchoolYearHandler.
func NewSchoolYearHandler(schoolYears *service.SchoolYearService) *SchoolYearHandler {
	return &SchoolYearHandler{schoolYears: schoolYears}
}

// List godoc
// @Summary List school years
// @Tags SchoolYears
// @Produce json
// @Param status query string false "Filter by lifecycle status code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /school-years [get]
func (h *SchoolYearHandler) List(c *gin.Context) {
	var filter models.SchoolYearFilter
	filter.StatusCode = c.Query("status")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	years, total, err := h.schoolYears.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get a school year
// @Tags SchoolYears
// @Produce json
// @Param id path string true "School Year ID"
// @Success 200 {object} response.Envelope
// @Router /school-years/{id} [get]
func (h *SchoolYearHandler) Get(c *gin.Context) {
	year, err := h.schoolYears.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

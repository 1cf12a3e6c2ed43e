package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cvbeltran/vschool-api/internal/models"
	"github.com/cvbeltran/vschool-api/internal/service"
	appErrors "github.com/cvbeltran/vschool-api/pkg/errors"
	"github.com/cvbeltran/vschool-api/pkg/response"
)

// TaxonomyHandler exposes the configurable enumeration endpoints.
type TaxonomyHandler struct {
	taxonomies *service.TaxonomyService
	validate   *validator.Validate
}

// NewTaxonomyHandler constructs TaxonomyHandler.
func NewTaxonomyHandler(taxonomies *service.TaxonomyService, validate *validator.Validate) *TaxonomyHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TaxonomyHandler{taxonomies: taxonomies, validate: validate}
}

type createTaxonomyRequest struct {
	Category       string  `json:"category" validate:"required,max=64"`
	Code           string  `json:"code" validate:"required,max=64"`
	Label          string  `json:"label" validate:"required,max=128"`
	Active         *bool   `json:"active,omitempty"`
	SortOrder      int     `json:"sort_order"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

type updateTaxonomyRequest struct {
	Label     string `json:"label" validate:"required,max=128"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sort_order"`
}

// List godoc
// @Summary List taxonomy entries
// @Tags Taxonomies
// @Produce json
// @Param category query string false "Filter by category"
// @Param active query bool false "Filter by active flag"
// @Success 200 {object} response.Envelope
// @Router /taxonomies [get]
func (h *TaxonomyHandler) List(c *gin.Context) {
	var filter models.TaxonomyFilter
	filter.Category = c.Query("category")
	if active := c.Query("active"); active != "" {
		v := active == "true"
		filter.Active = &v
	}
	if scope := scopeFromContext(c); !scope.AllTenants {
		filter.OrganizationID = scope.OrganizationID
	}

	entries, err := h.taxonomies.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Get a taxonomy entry
// @Tags Taxonomies
// @Produce json
// @Param id path string true "Taxonomy ID"
// @Success 200 {object} response.Envelope
// @Router /taxonomies/{id} [get]
func (h *TaxonomyHandler) Get(c *gin.Context) {
	entry, err := h.taxonomies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create a taxonomy entry
// @Tags Taxonomies
// @Accept json
// @Produce json
// @Param payload body createTaxonomyRequest true "Taxonomy payload"
// @Success 201 {object} response.Envelope
// @Router /taxonomies [post]
func (h *TaxonomyHandler) Create(c *gin.Context) {
	var req createTaxonomyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid taxonomy payload"))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	entry := &models.Taxonomy{
		Category:       req.Category,
		Code:           req.Code,
		Label:          req.Label,
		Active:         active,
		SortOrder:      req.SortOrder,
		OrganizationID: req.OrganizationID,
	}
	created, err := h.taxonomies.Create(c.Request.Context(), actorFromContext(c), entry)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update a taxonomy entry
// @Tags Taxonomies
// @Accept json
// @Produce json
// @Param id path string true "Taxonomy ID"
// @Param payload body updateTaxonomyRequest true "Taxonomy payload"
// @Success 200 {object} response.Envelope
// @Router /taxonomies/{id} [put]
func (h *TaxonomyHandler) Update(c *gin.Context) {
	var req updateTaxonomyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid taxonomy payload"))
		return
	}

	entry, err := h.taxonomies.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Label, req.Active, req.SortOrder)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Deactivate a taxonomy entry
// @Tags Taxonomies
// @Produce json
// @Param id path string true "Taxonomy ID"
// @Success 204
// @Router /taxonomies/{id} [delete]
func (h *TaxonomyHandler) Delete(c *gin.Context) {
	if err := h.taxonomies.Deactivate(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cvbeltran/vschool-api/internal/service"
	"github.com/cvbeltran/vschool-api/pkg/response"
)

// OrganizationHandler exposes tenant endpoints.
type OrganizationHandler struct {
	organizations *service.OrganizationService
}

// NewOrganizationHandler constructs OrganizationHandler.
func NewOrganizationHandler(organizations *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{organizations: organizations}
}

// List godoc
// @Summary List organizations
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	organizations, err := h.organizations.List(c.Request.Context(), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, organizations, nil)
}

// Get godoc
// @Summary Get an organization
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	organization, err := h.organizations.Get(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, organization, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/internship-office/ptms-api/internal/service"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/response"
)

// MaintenanceHandler exposes administrative bulk operations.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
}

// NewMaintenanceHandler constructs MaintenanceHandler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// CleanupChangeRequests godoc
// @Summary Bulk-remove stale change requests for a document type
// @Description Run with dry_run=true first to preview the affected rows.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body service.CleanupRequest true "Cleanup payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/change-requests [post]
func (h *MaintenanceHandler) CleanupChangeRequests(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cleanup payload"))
		return
	}
	result, err := h.maintenance.CleanupChangeRequests(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

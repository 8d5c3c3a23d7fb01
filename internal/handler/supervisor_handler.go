package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/service"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/response"
)

// SupervisorHandler exposes the tokenized external-signer endpoints. Issue
// runs behind auth; verify and sign are public, gated only by the token.
type SupervisorHandler struct {
	supervisors *service.SupervisorService
}

// NewSupervisorHandler constructs SupervisorHandler.
func NewSupervisorHandler(supervisors *service.SupervisorService) *SupervisorHandler {
	return &SupervisorHandler{supervisors: supervisors}
}

// IssueLink godoc
// @Summary Issue a signing link for the application's supervisor
// @Tags Supervisor
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body object true "Form type"
// @Success 201 {object} response.Envelope
// @Router /applications/{id}/supervisor-link [post]
func (h *SupervisorHandler) IssueLink(c *gin.Context) {
	var payload struct {
		FormType string `json:"form_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "form_type required"))
		return
	}
	link, err := h.supervisors.IssueLink(c.Request.Context(), c.Param("id"), models.FormType(payload.FormType))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Verify godoc
// @Summary Resolve a signing token into the external signing page context
// @Tags Supervisor
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /supervisor/verify/{token} [get]
func (h *SupervisorHandler) Verify(c *gin.Context) {
	view, err := h.supervisors.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Sign godoc
// @Summary Sign a form as the external supervisor
// @Tags Supervisor
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param payload body service.SupervisorSignRequest true "Signature payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervisor/sign/{token} [post]
func (h *SupervisorHandler) Sign(c *gin.Context) {
	var req service.SupervisorSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signature payload"))
		return
	}
	form, err := h.supervisors.Sign(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

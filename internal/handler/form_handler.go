package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/service"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/response"
)

// FormHandler exposes the paperwork form endpoints.
type FormHandler struct {
	forms *service.FormService
}

// NewFormHandler constructs FormHandler.
func NewFormHandler(forms *service.FormService) *FormHandler {
	return &FormHandler{forms: forms}
}

// List godoc
// @Summary List form responses for an application
// @Tags Forms
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/forms [get]
func (h *FormHandler) List(c *gin.Context) {
	forms, err := h.forms.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forms, nil)
}

// Get godoc
// @Summary Get one form response
// @Tags Forms
// @Produce json
// @Param id path string true "Application ID"
// @Param type path string true "Form type"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/forms/{type} [get]
func (h *FormHandler) Get(c *gin.Context) {
	form, err := h.forms.Get(c.Request.Context(), c.Param("id"), models.FormType(c.Param("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Submit godoc
// @Summary Submit or resubmit a form
// @Description Resubmitting overwrites the payload but keeps collected signatures.
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.SubmitFormRequest true "Form payload"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/forms [post]
func (h *FormHandler) Submit(c *gin.Context) {
	var req service.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}
	form, err := h.forms.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Sign godoc
// @Summary Fill one signature slot on a form
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.SignFormRequest true "Signature payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/forms/sign [post]
func (h *FormHandler) Sign(c *gin.Context) {
	var req service.SignFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signature payload"))
		return
	}
	form, err := h.forms.Sign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

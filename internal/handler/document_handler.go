package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/internship-office/ptms-api/internal/models"
	"github.com/internship-office/ptms-api/internal/service"
	appErrors "github.com/internship-office/ptms-api/pkg/errors"
	"github.com/internship-office/ptms-api/pkg/response"
)

// DocumentHandler exposes letter generation and download endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// List godoc
// @Summary List documents for an application
// @Tags Documents
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Generate godoc
// @Summary Generate (or regenerate) a letter
// @Description Regeneration bumps the version; prior copies keep their paths.
// @Tags Documents
// @Produce json
// @Param id path string true "Application ID"
// @Param type path string true "Letter type"
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /applications/{id}/documents/{type} [post]
func (h *DocumentHandler) Generate(c *gin.Context) {
	doc, err := h.documents.Generate(c.Request.Context(), c.Param("id"), models.FormType(c.Param("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Download godoc
// @Summary Download the live version of a letter
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Application ID"
// @Param type path string true "Letter type"
// @Success 200 {file} binary
// @Router /applications/{id}/documents/{type}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	data, filename, err := h.documents.Download(c.Request.Context(), c.Param("id"), models.FormType(c.Param("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.PDF(c, filename, data)
}

// UpdateStatus godoc
// @Summary Update a document's status
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param type path string true "Letter type"
// @Param payload body object true "New status"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/documents/{type}/status [put]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var payload struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	status := models.DocumentStatus(strings.ToUpper(payload.Status))
	doc, err := h.documents.UpdateStatus(c.Request.Context(), c.Param("id"), models.FormType(c.Param("type")), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"manyame-permits/internal/adapters/http/middleware"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/response"
)

// DocumentHandler handles supporting document endpoints
type DocumentHandler struct {
	docService *services.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// ListDocuments returns the document checklist of an application
// @Summary List documents
// @Description Documents grouped by checklist category
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} response.Response
// @Router /applications/{id}/documents [get]
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	groups, err := h.docService.ListDocumentsGrouped(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	return response.Success(c, "Documents retrieved successfully", fiber.Map{
		"groups": groups,
	})
}

// UploadDocument stores one supporting file
// @Summary Upload document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param document_type formData string true "Document type"
// @Param file formData file true "File"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /applications/{id}/documents [post]
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return domain.NewValidationError("file", "no file selected")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	doc, err := h.docService.UploadDocument(c.Context(), middleware.ActorFrom(c), &services.UploadInput{
		ApplicationID: id,
		DocumentType:  c.FormValue("document_type"),
		Filename:      fh.Filename,
		Data:          data,
	})
	if err != nil {
		return err
	}

	return response.Created(c, "Document uploaded successfully", fiber.Map{
		"document": doc.ToResponse(),
	})
}

// DownloadDocument streams a stored file after verifying its hash
// @Summary Download document
// @Tags Documents
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Param inline query bool false "Display inline instead of downloading"
// @Success 200 {file} file
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /documents/{id} [get]
func (h *DocumentHandler) DownloadDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	doc, data, err := h.docService.OpenDocument(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	contentType, ok := domain.ContentTypeFor(doc.OriginalFilename)
	if !ok {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	if c.QueryBool("inline") && domain.InlineSafe(contentType) {
		contentDisposition(c, "inline", contentType, doc.OriginalFilename)
	} else {
		attachment(c, contentType, doc.OriginalFilename)
	}
	return c.Send(data)
}

// DeleteDocument removes a document and its file
// @Summary Delete document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.docService.DeleteDocument(c.Context(), middleware.ActorFrom(c), id); err != nil {
		return err
	}

	return response.Success(c, "Document deleted successfully", nil)
}

// DocumentHistory returns log rows mentioning the document
// @Summary Document history
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} response.Response
// @Router /documents/{id}/history [get]
func (h *DocumentHandler) DocumentHistory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	logs, err := h.docService.DocumentHistory(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	return response.Success(c, "Document history retrieved successfully", fiber.Map{
		"history": logs,
	})
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/service"
)

// DocumentHandler handles catalog build and read-back endpoints.
type DocumentHandler struct {
	catalogService service.CatalogService
	log            *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(catalogService service.CatalogService, log *zap.Logger) *DocumentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentHandler{catalogService: catalogService, log: log.With(zap.String("component", "document_handler"))}
}

// CreateDocumentRequest is the body of POST /api/v1/documents.
type CreateDocumentRequest struct {
	Document  domain.DocumentInput    `json:"document"`
	Name      string                  `json:"name"`
	Overrides service.RefineOverrides `json:"overrides"`
}

// Create handles POST /api/v1/documents
// @Summary Build a document catalog
// @Description Refine every page, extract content and write the catalog; skipped pages are listed in the summary
// @Tags documents
// @Accept json
// @Produce json
// @Param request body CreateDocumentRequest true "Document pages and optional overrides"
// @Success 201 {object} APIResponse{data=service.CatalogSummary} "Catalog written"
// @Failure 400 {object} APIResponse{error=APIError} "Invalid request"
// @Failure 401 {object} APIResponse{error=APIError} "Unauthorized"
// @Failure 500 {object} APIResponse{error=APIError} "Catalog could not be written"
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if len(req.Document.Pages) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document has no pages")
		return
	}

	summary, err := h.catalogService.Build(c.Request.Context(), &service.BuildCatalogInput{
		Document:  req.Document,
		Name:      req.Name,
		Overrides: req.Overrides,
	})
	if err != nil {
		HandleError(c, h.log, err)
		return
	}
	RespondCreated(c, summary)
}

// GetByID handles GET /api/v1/documents/:id
// @Summary Get document by ID
// @Description Get a catalogued document, with a download link when the catalog is in S3
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} APIResponse{data=domain.Document} "Document details"
// @Failure 400 {object} APIResponse{error=APIError} "Invalid ID"
// @Failure 401 {object} APIResponse{error=APIError} "Unauthorized"
// @Failure 404 {object} APIResponse{error=APIError} "Document not found"
// @Security BearerAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	doc, err := h.catalogService.GetDocument(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, h.log, err)
		return
	}
	RespondOK(c, doc)
}

// ListElements handles GET /api/v1/documents/:id/elements
// @Summary List document elements
// @Description List catalogued elements in reading order, optionally filtered by type
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param type query string false "Element type (Text, Title, List, Table, Figure, Unknown)"
// @Success 200 {object} APIResponse{data=[]domain.Element,meta=Meta} "Elements"
// @Failure 400 {object} APIResponse{error=APIError} "Invalid ID or type"
// @Failure 401 {object} APIResponse{error=APIError} "Unauthorized"
// @Failure 404 {object} APIResponse{error=APIError} "Document not found"
// @Security BearerAuth
// @Router /documents/{id}/elements [get]
func (h *DocumentHandler) ListElements(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	var elementType *domain.ClassLabel
	if t := c.Query("type"); t != "" {
		label := domain.ParseClassLabel(t)
		if label == domain.LabelUnknown && !strings.EqualFold(t, string(domain.LabelUnknown)) {
			RespondError(c, http.StatusBadRequest, "INVALID_TYPE", "unknown element type")
			return
		}
		elementType = &label
	}

	elements, err := h.catalogService.ListElements(c.Request.Context(), docID, elementType)
	if err != nil {
		HandleError(c, h.log, err)
		return
	}
	RespondList(c, elements, len(elements))
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/service"
)

// RefineHandler serves single-page refinement.
type RefineHandler struct {
	layoutService service.LayoutService
	log           *zap.Logger
}

// NewRefineHandler creates a new RefineHandler.
func NewRefineHandler(layoutService service.LayoutService, log *zap.Logger) *RefineHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefineHandler{layoutService: layoutService, log: log.With(zap.String("component", "refine_handler"))}
}

// RefineRequest is the body of POST /api/v1/pages/refine.
type RefineRequest struct {
	Page      domain.PageInput        `json:"page"`
	Overrides service.RefineOverrides `json:"overrides"`
	SkipCache bool                    `json:"skip_cache"`
}

// RefineResponse is a refined page plus what the pipeline noticed on the way.
type RefineResponse struct {
	Page        domain.Page `json:"page"`
	TwoColumn   bool        `json:"two_column"`
	Iterations  int         `json:"resolver_iterations"`
	Diagnostics []string    `json:"diagnostics,omitempty"`
	Cached      bool        `json:"cached"`
}

// Refine handles POST /api/v1/pages/refine
// @Summary Refine one page
// @Description Merge, de-overlap, order and caption-group one page of detector boxes
// @Tags pages
// @Accept json
// @Produce json
// @Param request body RefineRequest true "Page detections and optional overrides"
// @Success 200 {object} APIResponse{data=RefineResponse} "Refined page"
// @Failure 400 {object} APIResponse{error=APIError} "Invalid page or overrides"
// @Failure 401 {object} APIResponse{error=APIError} "Unauthorized"
// @Failure 413 {object} APIResponse{error=APIError} "Too many detections on the page"
// @Security BearerAuth
// @Router /pages/refine [post]
func (h *RefineHandler) Refine(c *gin.Context) {
	var req RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.Page.Width <= 0 || req.Page.Height <= 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "page width and height are required")
		return
	}

	out, err := h.layoutService.Refine(c.Request.Context(), &service.RefineInput{
		Page:      req.Page,
		Overrides: req.Overrides,
		SkipCache: req.SkipCache,
	})
	if err != nil {
		HandleError(c, h.log, err)
		return
	}

	RespondOK(c, RefineResponse{
		Page:        out.Result.Page,
		TwoColumn:   out.Result.Columns.TwoColumn,
		Iterations:  out.Result.Iterations,
		Diagnostics: out.Result.Diagnostics,
		Cached:      out.Cached,
	})
}

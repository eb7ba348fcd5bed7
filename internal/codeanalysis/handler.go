package codeanalysis

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"code-analysis-api/internal/shared/server/middleware"
	"code-analysis-api/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the code analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type createRequest struct {
	RepositoryURL string `json:"repository_url" binding:"required,http_url"`
}

// reportRoutes maps the report sub-resource names to their fields.
var reportRoutes = map[string]Field{
	"data-model-analysis":        FieldDataModelAnalysis,
	"routes-interfaces-analysis": FieldRoutesInterfacesAnalysis,
	"business-logic-analysis":    FieldBusinessLogicAnalysis,
	"product-requirements":       FieldProductRequirements,
	"architecture-documentation": FieldArchitectureDocumentation,
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/code-analysis", h.create)
	rg.GET("/code-analysis", h.list)
	rg.GET("/code-analysis/:id", h.get)
	for name, field := range reportRoutes {
		rg.GET("/code-analysis/:id/"+name, h.report(field))
	}
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "repository_url must be a valid http(s) URL", []map[string]string{
			{"field": "repository_url", "issue": err.Error()},
		})
		return
	}

	rec, err := h.Svc.Create(c.Request.Context(), req.RepositoryURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRepositoryURL):
			respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "repository_url must be a valid http(s) URL", nil)
		case errors.Is(err, ErrPipelineUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "pipeline_unavailable", "analysis pipeline is not available", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}
	c.Set(middleware.AnalysisIDKey, rec.ID)
	respond.JSON(c, http.StatusCreated, gin.H{"_id": rec.ID})
}

func (h *Handler) get(c *gin.Context) {
	analysisID := c.Param("id")
	c.Set(middleware.AnalysisIDKey, analysisID)

	rec, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		h.lookupError(c, err, "failed to fetch analysis")
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) report(field Field) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysisID := c.Param("id")
		c.Set(middleware.AnalysisIDKey, analysisID)

		body, err := h.Svc.Report(c.Request.Context(), analysisID, field)
		if err != nil {
			if errors.Is(err, ErrReportUnavailable) {
				respond.Error(c, http.StatusNotFound, "not_found", field.String()+" not available", nil)
				return
			}
			h.lookupError(c, err, "failed to fetch report")
			return
		}
		respond.Text(c, body)
	}
}

func (h *Handler) list(c *gin.Context) {
	filters := Filters{}
	if raw := c.Query("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "unknown status", []map[string]string{
				{"field": "status", "issue": "must be one of IN_PROGRESS, COMPLETED, ERROR"},
			})
			return
		}
		filters.Status = &status
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filters.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filters.Offset = parsed
		}
	}

	records, err := h.Svc.List(c.Request.Context(), filters)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, records)
}

func (h *Handler) lookupError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidID):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}

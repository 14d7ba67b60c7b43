package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// health reports the process is up. It never touches the store.
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":      true,
		"service": s.serviceName,
	})
}

// healthDB runs a trivial store query.
func (s *Server) healthDB(c echo.Context) error {
	if err := s.ingestion.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"db":    "unreachable",
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok": true,
		"db": "reachable",
	})
}

// register handles POST /documents. A new document is 201, an existing
// one 200.
func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	doc, created, err := s.ingestion.Register(c.Request().Context(), req.registration())
	if err != nil {
		return s.fail(c, err)
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, toDocument(doc))
}

// list handles GET /documents?status=&tenant_id=&limit=.
func (s *Server) list(c echo.Context) error {
	var filter domain.DocumentFilter

	if raw := c.QueryParam("status"); raw != "" {
		status, err := domain.ParseDocumentStatus(raw)
		if err != nil {
			return s.fail(c, err)
		}
		filter.Status = status
	}
	filter.TenantID = c.QueryParam("tenant_id")
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
		}
		filter.Limit = limit
	}

	docs, err := s.ingestion.List(c.Request().Context(), filter)
	if err != nil {
		return s.fail(c, err)
	}

	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = toDocument(&docs[i])
	}
	return c.JSON(http.StatusOK, out)
}

// status handles GET /documents/:id.
func (s *Server) status(c echo.Context) error {
	report, err := s.ingestion.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toReport(report))
}

// reset handles POST /documents/:id/reset.
func (s *Server) reset(c echo.Context) error {
	doc, err := s.ingestion.Reset(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toDocument(doc))
}

// delete handles DELETE /documents/:id.
func (s *Server) delete(c echo.Context) error {
	if err := s.ingestion.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// enqueue handles POST /documents/:id/stages/:stage.
func (s *Server) enqueue(c echo.Context) error {
	stage, err := domain.ParseStage(c.Param("stage"))
	if err != nil {
		return s.fail(c, err)
	}
	job, err := s.ingestion.Enqueue(c.Request().Context(), c.Param("id"), stage)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toJob(job))
}

// stats handles GET /jobs/stats.
func (s *Server) stats(c echo.Context) error {
	counts, err := s.ingestion.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]jobCountResponse, len(counts))
	for i, jc := range counts {
		out[i] = jobCountResponse{Stage: jc.Stage.String(), Status: jc.Status.String(), Count: jc.Count}
	}
	return c.JSON(http.StatusOK, out)
}

// fail writes err with the status code its kind maps to.
func (s *Server) fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return c.JSON(code, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPriorStageIncomplete), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ppiankov/techtag/internal/model"
)

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Content string `json:"content"`
}

// BatchRequest is the optional body of POST /api/v1/batch.
type BatchRequest struct {
	MaxItems int `json:"max_items"`
}

// ResetResponse is the body returned by POST /api/v1/reset.
type ResetResponse struct {
	Reset int64 `json:"reset"`
}

// ReloadResponse describes the rule set loaded by a reload.
type ReloadResponse struct {
	Version    string `json:"version,omitempty"`
	Source     string `json:"source,omitempty"`
	Techniques int    `json:"techniques"`
}

// RejectRequest is the optional body of POST /api/v1/review/:id/reject.
type RejectRequest struct {
	ReplacementID string `json:"replacement_id"`
}

// BulkApproveRequest is the body of POST /api/v1/review/approve-bulk.
type BulkApproveRequest struct {
	TechniqueID string `json:"technique_id"`
}

// BulkApproveResponse reports how many items were approved.
type BulkApproveResponse struct {
	TechniqueID string `json:"technique_id"`
	Approved    int64  `json:"approved"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid analyze request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	analysis, err := s.engine.Analyze(req.Content)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MaxItems < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "max_items must not be negative")
	}

	if _, err := s.engine.Reload(); err != nil {
		return s.fail(c, err)
	}
	report, err := s.batch.ClassifyBatch(c.Request().Context(), req.MaxItems)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleReset(c echo.Context) error {
	if _, err := s.engine.Reload(); err != nil {
		return s.fail(c, err)
	}
	n, err := s.batch.ResetSuggestions(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ResetResponse{Reset: n})
}

func (s *Server) handleReload(c echo.Context) error {
	rs, err := s.engine.Reload()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ReloadResponse{
		Version:    rs.Version,
		Source:     rs.Source,
		Techniques: len(rs.Rules),
	})
}

func (s *Server) handleReviewList(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	items, err := s.review.List(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleReviewStats(c echo.Context) error {
	stats, err := s.review.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleApprove(c echo.Context) error {
	item, err := s.review.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleReject(c echo.Context) error {
	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	replacement := model.TechniqueID(strings.TrimSpace(req.ReplacementID))
	item, err := s.review.Reject(c.Request().Context(), c.Param("id"), replacement)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleBulkApprove(c echo.Context) error {
	var req BulkApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id := strings.TrimSpace(req.TechniqueID)
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "technique_id field is required")
	}
	n, err := s.review.BulkApproveByTechnique(c.Request().Context(), model.TechniqueID(id))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, BulkApproveResponse{TechniqueID: id, Approved: n})
}

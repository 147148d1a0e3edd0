package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/llm-loadgen/llm-loadgen/internal/storage"
)

// Request/Response types

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateRunRequest records a benchmark run executed elsewhere. Benchmark
// nodes push their summaries here for central collection.
type CreateRunRequest struct {
	Backend     string `json:"backend" binding:"required,oneof=vllm fastgen aml"`
	Endpoint    string `json:"endpoint" binding:"required"`
	Model       string `json:"model,omitempty"`
	NumClients  int    `json:"num_clients" binding:"required,min=1"`
	NumRequests int    `json:"num_requests" binding:"required,min=1"`
	Warmup      int    `json:"warmup,omitempty"`
	Stream      bool   `json:"stream,omitempty"`

	DurationSec    float64 `json:"duration_sec" binding:"required,gt=0"`
	RequestsPerSec float64 `json:"requests_per_sec,omitempty"`
	TotalTokens    int     `json:"total_tokens,omitempty"`
	TokensPerSec   float64 `json:"tokens_per_sec,omitempty"`
	LatencyMeanMS  float64 `json:"latency_mean_ms,omitempty"`
	LatencyP50MS   float64 `json:"latency_p50_ms,omitempty"`
	LatencyP90MS   float64 `json:"latency_p90_ms,omitempty"`
	LatencyP99MS   float64 `json:"latency_p99_ms,omitempty"`
	TTFTMeanMS     float64 `json:"ttft_mean_ms,omitempty"`
	TTFTP50MS      float64 `json:"ttft_p50_ms,omitempty"`
	TTFTP90MS      float64 `json:"ttft_p90_ms,omitempty"`
	TTFTP99MS      float64 `json:"ttft_p99_ms,omitempty"`
	ITLMeanMS      float64 `json:"itl_mean_ms,omitempty"`
	ITLP50MS       float64 `json:"itl_p50_ms,omitempty"`
	ITLP90MS       float64 `json:"itl_p90_ms,omitempty"`
	ITLP99MS       float64 `json:"itl_p99_ms,omitempty"`

	LatencySamples []float64 `json:"latency_samples,omitempty"`
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	filter := storage.RunFilter{
		Backend: c.Query("backend"),
		Model:   c.Query("model"),
		OrderBy: c.DefaultQuery("order_by", "date"),
		Limit:   50,
	}
	filter.OrderDesc = c.DefaultQuery("order", "desc") == "desc"

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 500 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:     "limit must be an integer between 1 and 500",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		filter.Limit = limit
	}

	runs, err := s.runs.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to list runs",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.runs.Get(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "run not found",
			RequestID: c.GetString("request_id"),
		})
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to get run",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) handleCreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     sanitizeValidationError(err),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	run := &storage.Run{
		Backend:        req.Backend,
		Endpoint:       req.Endpoint,
		Model:          req.Model,
		NumClients:     req.NumClients,
		NumRequests:    req.NumRequests,
		Warmup:         req.Warmup,
		Stream:         req.Stream,
		DurationSec:    req.DurationSec,
		RequestsPerSec: req.RequestsPerSec,
		TotalTokens:    req.TotalTokens,
		TokensPerSec:   req.TokensPerSec,
		LatencyMeanMS:  req.LatencyMeanMS,
		LatencyP50MS:   req.LatencyP50MS,
		LatencyP90MS:   req.LatencyP90MS,
		LatencyP99MS:   req.LatencyP99MS,
		TTFTMeanMS:     req.TTFTMeanMS,
		TTFTP50MS:      req.TTFTP50MS,
		TTFTP90MS:      req.TTFTP90MS,
		TTFTP99MS:      req.TTFTP99MS,
		ITLMeanMS:      req.ITLMeanMS,
		ITLP50MS:       req.ITLP50MS,
		ITLP90MS:       req.ITLP90MS,
		ITLP99MS:       req.ITLP99MS,
		LatencySamples: req.LatencySamples,
	}

	if err := s.runs.Create(c.Request.Context(), run); err != nil {
		s.logger.Error("failed to create run", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to create run",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusCreated, run)
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	id := c.Param("id")

	err := s.runs.Delete(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "run not found",
			RequestID: c.GetString("request_id"),
		})
		return
	}
	if err != nil {
		s.logger.Error("failed to delete run", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to delete run",
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// sanitizeValidationError converts internal field names to JSON field names
// in validation error messages to avoid leaking internal implementation details.
func sanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		jsonFieldName := toSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", jsonFieldName))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", jsonFieldName, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", jsonFieldName, fe.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", jsonFieldName, fe.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", jsonFieldName, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", jsonFieldName, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

var snakeCaseRe = regexp.MustCompile("([a-z0-9])([A-Z])")

// toSnakeCase converts a PascalCase or camelCase string to snake_case
func toSnakeCase(s string) string {
	fieldMappings := map[string]string{
		"NumClients":     "num_clients",
		"NumRequests":    "num_requests",
		"DurationSec":    "duration_sec",
		"RequestsPerSec": "requests_per_sec",
		"TotalTokens":    "total_tokens",
		"TokensPerSec":   "tokens_per_sec",
	}
	if mapped, ok := fieldMappings[s]; ok {
		return mapped
	}
	return strings.ToLower(snakeCaseRe.ReplaceAllString(s, "${1}_${2}"))
}

package api

import (
	"github.com/sitelens/sitelens/internal/health"
	"github.com/sitelens/sitelens/internal/reduce"
	"github.com/sitelens/sitelens/internal/store"
)

// CreateRunRequest is the request body for POST /runs.
type CreateRunRequest struct {
	RunID     string `json:"run_id,omitempty"`
	Label     string `json:"label"`
	TargetURL string `json:"target_url"`
}

// CreateRunResponse is the response body for POST /runs.
type CreateRunResponse struct {
	RunID string `json:"run_id"`
}

// ListRunsResponse is the response body for GET /runs.
type ListRunsResponse struct {
	Runs []store.RunInfo `json:"runs"`
}

// GetRunResponse is the response body for GET /runs/{id}.
type GetRunResponse struct {
	store.RunInfo
}

// DeleteRunResponse is the response body for DELETE /runs/{id}.
type DeleteRunResponse struct {
	RunID   string `json:"run_id"`
	Deleted bool   `json:"deleted"`
}

// IngestRequest is the request body for POST /runs/{id}/samples.
// Samples are loosely-typed records; field synonyms are normalized
// before storage.
type IngestRequest struct {
	Samples []reduce.SampleRecord `json:"samples"`
}

// IngestResponse is the response body for POST /runs/{id}/samples.
type IngestResponse struct {
	RunID       string `json:"run_id"`
	Accepted    int    `json:"accepted"`
	SampleCount int    `json:"sample_count"`
	Revision    uint64 `json:"revision"`
	Truncated   bool   `json:"truncated"`
}

// SeriesResponse is the response body for GET /runs/{id}/series.
type SeriesResponse struct {
	RunID        string                      `json:"run_id"`
	Revision     uint64                      `json:"revision"`
	TotalSamples int                         `json:"total_samples"`
	Points       []reduce.ReducedPoint       `json:"points"`
	Distribution []reduce.DistributionBucket `json:"distribution"`
}

// DistributionResponse is the response body for GET /runs/{id}/distribution.
type DistributionResponse struct {
	RunID    string                      `json:"run_id"`
	Revision uint64                      `json:"revision"`
	Buckets  []reduce.DistributionBucket `json:"buckets"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Runs        int              `json:"runs"`
	CacheHits   int64            `json:"cache_hits"`
	CacheMisses int64            `json:"cache_misses"`
	Health      *health.Snapshot `json:"health,omitempty"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response body for GET /readyz.
type ReadyResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	ErrorType    string                 `json:"error_type"`
	ErrorCode    string                 `json:"error_code"`
	ErrorMessage string                 `json:"error_message"`
	Retryable    bool                   `json:"retryable"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// ErrorType constants for API errors.
const (
	ErrorTypeInvalidArgument = "invalid_argument"
	ErrorTypeNotFound        = "not_found"
	ErrorTypeRateLimited     = "rate_limited"
	ErrorTypeInternal        = "internal"
)

// ErrorCode constants for specific error conditions.
const (
	ErrorCodeRunNotFound      = "RUN_NOT_FOUND"
	ErrorCodeInvalidRequest   = "INVALID_REQUEST"
	ErrorCodeInvalidParam     = "INVALID_QUERY_PARAM"
	ErrorCodeInternalError    = "INTERNAL_ERROR"
	ErrorCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// NewInvalidRequestErrorResponse creates an error response for malformed requests.
func NewInvalidRequestErrorResponse(message string, details map[string]interface{}) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeInvalidArgument,
		ErrorCode:    ErrorCodeInvalidRequest,
		ErrorMessage: message,
		Retryable:    false,
		Details:      details,
	}
}

// NewInvalidParamErrorResponse creates an error response for a bad query parameter.
func NewInvalidParamErrorResponse(param, message string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeInvalidArgument,
		ErrorCode:    ErrorCodeInvalidParam,
		ErrorMessage: message,
		Retryable:    false,
		Details: map[string]interface{}{
			"param": param,
		},
	}
}

// NewNotFoundErrorResponse creates an error response for run not found.
func NewNotFoundErrorResponse(runID string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeNotFound,
		ErrorCode:    ErrorCodeRunNotFound,
		ErrorMessage: "Run not found",
		Retryable:    false,
		Details: map[string]interface{}{
			"run_id": runID,
		},
	}
}

// NewInternalErrorResponse creates an error response for internal errors.
func NewInternalErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		ErrorType:    ErrorTypeInternal,
		ErrorCode:    ErrorCodeInternalError,
		ErrorMessage: message,
		Retryable:    true,
	}
}

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/sitelens/sitelens/internal/reduce"
)

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, NewInvalidRequestErrorResponse(
			"Invalid JSON request body",
			map[string]interface{}{"parse_error": err.Error()},
		))
		return
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	s.runStore.CreateRun(runID, req.Label, req.TargetURL)
	s.syncActiveRuns()

	s.writeJSON(w, http.StatusCreated, &CreateRunResponse{RunID: runID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runStore.ListRuns()
	s.writeJSON(w, http.StatusOK, &ListRunsResponse{Runs: runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, runID string) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.runStore.GetRun(runID)
		if err != nil {
			s.writeError(w, http.StatusNotFound, NewNotFoundErrorResponse(runID))
			return
		}
		s.writeJSON(w, http.StatusOK, &GetRunResponse{RunInfo: info})
	case http.MethodDelete:
		deleted := s.runStore.HasRun(runID)
		s.runStore.DeleteRun(runID)
		s.syncActiveRuns()
		s.writeJSON(w, http.StatusOK, &DeleteRunResponse{RunID: runID, Deleted: deleted})
	default:
		s.writeMethodNotAllowed(w, r.Method, "GET, DELETE")
	}
}

func (s *Server) handleIngestSamples(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, r.Method, "POST")
		return
	}

	before, err := s.runStore.GetRun(runID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, NewNotFoundErrorResponse(runID))
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, NewInvalidRequestErrorResponse(
			"Invalid JSON request body",
			map[string]interface{}{"parse_error": err.Error()},
		))
		return
	}

	if len(req.Samples) == 0 {
		s.writeError(w, http.StatusBadRequest, NewInvalidRequestErrorResponse(
			"Samples are required",
			map[string]interface{}{"field": "samples"},
		))
		return
	}

	samples := reduce.NormalizeAll(req.Samples)
	s.runStore.Append(runID, samples)

	info, err := s.runStore.GetRun(runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, NewInternalErrorResponse(err.Error()))
		return
	}

	// The per-run sample cap may drop part of the batch; report what was
	// actually stored, not the batch size.
	accepted := info.SampleCount - before.SampleCount

	if s.metrics != nil {
		s.metrics.RecordIngest(r.Context(), accepted)
	}

	s.writeJSON(w, http.StatusOK, &IngestResponse{
		RunID:       runID,
		Accepted:    accepted,
		SampleCount: info.SampleCount,
		Revision:    info.Revision,
		Truncated:   info.Truncated,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	opts, errResp := parseReduceOptions(r)
	if errResp != nil {
		s.writeError(w, http.StatusBadRequest, errResp)
		return
	}

	samples, revision, err := s.runStore.Snapshot(runID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, NewNotFoundErrorResponse(runID))
		return
	}

	result, _ := s.reduceWithTelemetry(r, runID, revision, samples, opts)

	s.writeJSON(w, http.StatusOK, &SeriesResponse{
		RunID:        runID,
		Revision:     revision,
		TotalSamples: len(samples),
		Points:       result.Points,
		Distribution: result.Distribution,
	})
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	rangeParam := r.URL.Query().Get("range")
	timeRange := reduce.RangeAll
	if rangeParam != "" {
		timeRange = reduce.TimeRange(rangeParam)
		if !timeRange.Valid() {
			s.writeError(w, http.StatusBadRequest, NewInvalidParamErrorResponse(
				"range", "range must be one of: all, last1min, last5min"))
			return
		}
	}

	samples, revision, err := s.runStore.Snapshot(runID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, NewNotFoundErrorResponse(runID))
		return
	}

	filtered := reduce.FilterRange(samples, timeRange)
	buckets := reduce.Distribution(filtered)

	s.writeJSON(w, http.StatusOK, &DistributionResponse{
		RunID:    runID,
		Revision: revision,
		Buckets:  buckets,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}
	s.writeJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	ready := s.runStore != nil && s.reducer != nil
	status := "ready"
	if !ready {
		status = "not_ready"
	}

	s.writeJSON(w, http.StatusOK, &ReadyResponse{
		Status: status,
		Ready:  ready,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	resp := &StatusResponse{
		Runs: s.runStore.RunCount(),
	}
	if s.reducer != nil {
		resp.CacheHits, resp.CacheMisses = s.reducer.Stats()
	}
	if s.healthMonitor != nil {
		if snap, ok := s.healthMonitor.Latest(); ok {
			resp.Health = &snap
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// reduceWithTelemetry runs the reduction through the memoizing reducer,
// recording a span and metrics around the call.
func (s *Server) reduceWithTelemetry(r *http.Request, runID string, revision uint64, samples []reduce.Sample, opts reduce.Options) (*reduce.Result, bool) {
	ctx := r.Context()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.StartReduceSpan(ctx, runID, len(samples))
		defer span.End()
	}

	hitsBefore := int64(0)
	if s.reducer != nil {
		hitsBefore, _ = s.reducer.Stats()
	}

	start := time.Now()
	var result *reduce.Result
	if s.reducer != nil {
		result = s.reducer.Reduce(runID, revision, samples, opts)
	} else {
		result = reduce.Reduce(samples, opts)
	}
	durationMs := float64(time.Since(start)) / float64(time.Millisecond)

	cached := false
	if s.reducer != nil {
		hitsAfter, _ := s.reducer.Stats()
		cached = hitsAfter > hitsBefore
	}

	if s.metrics != nil {
		s.metrics.RecordReduce(ctx, durationMs, len(samples), len(result.Points), cached)
	}

	return result, cached
}

// syncActiveRuns pushes the current run count into the observable gauge.
func (s *Server) syncActiveRuns() {
	if s.metrics != nil {
		s.metrics.SetActiveRuns(s.runStore.RunCount())
	}
}

// parseReduceOptions builds reduction options from series query parameters.
func parseReduceOptions(r *http.Request) (reduce.Options, *ErrorResponse) {
	opts := reduce.DefaultOptions()
	q := r.URL.Query()

	if v := q.Get("range"); v != "" {
		tr := reduce.TimeRange(v)
		if !tr.Valid() {
			return opts, NewInvalidParamErrorResponse(
				"range", "range must be one of: all, last1min, last5min")
		}
		opts.TimeRange = tr
	}

	if v := q.Get("interval_ms"); v != "" {
		interval, err := strconv.ParseInt(v, 10, 64)
		if err != nil || interval < 0 {
			return opts, NewInvalidParamErrorResponse(
				"interval_ms", "interval_ms must be a non-negative integer")
		}
		opts.IntervalMs = interval
	}

	if v := q.Get("max_points"); v != "" {
		maxPoints, err := strconv.Atoi(v)
		if err != nil || maxPoints < 1 {
			return opts, NewInvalidParamErrorResponse(
				"max_points", "max_points must be a positive integer")
		}
		opts.MaxPoints = maxPoints
	}

	if v := q.Get("sampling"); v != "" {
		sampling, err := strconv.ParseBool(v)
		if err != nil {
			return opts, NewInvalidParamErrorResponse(
				"sampling", "sampling must be a boolean")
		}
		opts.AdaptiveSampling = sampling
	}

	if v := q.Get("overlay"); v != "" {
		overlay, err := strconv.ParseBool(v)
		if err != nil {
			return opts, NewInvalidParamErrorResponse(
				"overlay", "overlay must be a boolean")
		}
		opts.AverageOverlay = overlay
	}

	return opts, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errResp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errResp)
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter, method, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, &ErrorResponse{
		ErrorType:    ErrorTypeInvalidArgument,
		ErrorCode:    ErrorCodeMethodNotAllowed,
		ErrorMessage: "Method not allowed",
		Retryable:    false,
		Details: map[string]interface{}{
			"method":  method,
			"allowed": allowed,
		},
	})
}

// maxRequestBodySize is the maximum allowed request body size (10MB default).
const maxRequestBodySize = 10 * 1024 * 1024

// limitedBody returns a reader that limits the body size.
// Use this before json.NewDecoder to prevent memory exhaustion.
func limitedBody(w http.ResponseWriter, r *http.Request) io.Reader {
	return http.MaxBytesReader(w, r.Body, maxRequestBodySize)
}

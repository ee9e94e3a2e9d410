package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperCAM/core/program"
	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
	"github.com/FocuswithJustin/JuniperCAM/internal/logging"
	"github.com/FocuswithJustin/JuniperCAM/internal/runlog"
)

const apiVersion = "0.3.0"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error. Details carries the structured fields
// of normalization failures: the offending line, the orphaned letters, the
// conflicting codes.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// DialectInfo describes one loaded dialect.
type DialectInfo struct {
	Name       string `json:"name"`
	Origin     string `json:"origin"`
	Extends    string `json:"extends,omitempty"`
	Strict     bool   `json:"strict"`
	EarlyDwell bool   `json:"early_dwell"`
	Groups     int    `json:"groups"`
}

// TableInfo is the effective modal table of a dialect.
type TableInfo struct {
	Dialect     string            `json:"dialect"`
	Strict      bool              `json:"strict"`
	Fingerprint string            `json:"fingerprint"`
	Groups      []rs274.GroupSpec `json:"groups"`
}

// NormalizeRequest is the request body for synchronous normalization and
// for jobs. Exactly one of Block and Program must be set; the remaining
// fields apply to programs only.
type NormalizeRequest struct {
	Block            string   `json:"block,omitempty"`
	Program          string   `json:"program,omitempty"`
	Dialect          string   `json:"dialect,omitempty"`
	Strict           *bool    `json:"strict,omitempty"`
	StickyMotion     *bool    `json:"sticky_motion,omitempty"`
	ExpandCycles     bool     `json:"expand_cycles,omitempty"`
	StripLineNumbers bool     `json:"strip_line_numbers,omitempty"`
	Strip            []string `json:"strip,omitempty"`
	Render           bool     `json:"render,omitempty"`
}

// ProgramResult is the normalized form of a whole program.
type ProgramResult struct {
	Blocks   []*rs274.Block `json:"blocks"`
	Digest   string         `json:"digest"`
	Commands int            `json:"commands"`
	Rendered string         `json:"rendered,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Dialects     int    `json:"dialects"`
	CachedBlocks int    `json:"cached_blocks"`
	Jobs         int    `json:"jobs"`
	RunLog       bool   `json:"run_log"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "JuniperCAM rs274 API",
		"version": apiVersion,
		"endpoints": []string{
			"GET /health",
			"GET /v1/dialects",
			"GET /v1/table",
			"POST /v1/normalize",
			"GET /v1/jobs",
			"POST /v1/jobs",
			"GET /v1/jobs/:id",
			"DELETE /v1/jobs/:id",
			"GET /v1/runs",
			"GET /v1/runs/:id",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:       "healthy",
		Version:      apiVersion,
		Uptime:       time.Since(s.startTime).String(),
		Dialects:     len(s.names),
		CachedBlocks: s.blocks.Len(),
		Jobs:         s.jobs.Len(),
		RunLog:       s.runs != nil,
	})
}

func (s *Server) handleDialects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	infos := make([]DialectInfo, 0, len(s.names))
	for _, name := range s.names {
		d := s.dialects[name]
		rows, err := d.Rows()
		if err != nil {
			// Validated at load, cannot fail here.
			continue
		}
		infos = append(infos, DialectInfo{
			Name:       name,
			Origin:     s.origins[name],
			Extends:    d.Extends,
			Strict:     d.Strict,
			EarlyDwell: d.EarlyDwell,
			Groups:     len(rows),
		})
	}

	respondList(w, infos, len(infos))
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	strict, ok := parseBoolParam(w, r, "strict")
	if !ok {
		return
	}

	name := r.URL.Query().Get("dialect")
	n, err := s.normalizer(name, strict)
	if err != nil {
		respondError(w, http.StatusBadRequest, "UNKNOWN_DIALECT", err.Error())
		return
	}

	if name == "" {
		name = "default"
	}
	respond(w, http.StatusOK, TableInfo{
		Dialect:     name,
		Strict:      n.Strict(),
		Fingerprint: n.Table().Fingerprint(),
		Groups:      n.Table().Rows(),
	})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	req, ok := decodeNormalizeRequest(w, r, s.cfg.MaxRequestBytes)
	if !ok {
		return
	}

	n, err := s.normalizer(req.Dialect, req.Strict)
	if err != nil {
		respondError(w, http.StatusBadRequest, "UNKNOWN_DIALECT", err.Error())
		return
	}

	if req.Block != "" {
		block, err := s.normalizeBlock(n, req.Block)
		if err != nil {
			respondNormalizeError(w, err)
			return
		}
		respond(w, http.StatusOK, block)
		return
	}

	result, err := s.normalizeProgram(n, req)
	s.recordRun(r.Context(), "api", req, result, err)
	if err != nil {
		respondNormalizeError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

// normalizeProgram runs the full program pipeline for a request: normalize
// every block, then apply the requested transforms.
func (s *Server) normalizeProgram(n *rs274.Normalizer, req NormalizeRequest) (*ProgramResult, error) {
	opts := program.Options{Normalizer: n, StickyMotion: true}
	if req.StickyMotion != nil {
		opts.StickyMotion = *req.StickyMotion
	}

	p, err := program.NormalizeString(req.Program, opts)
	if err != nil {
		var blockErr *program.BlockError
		if errors.As(err, &blockErr) {
			logging.BlockFailure(blockErr.Line, blockErr.Source, blockErr.Err)
		}
		return nil, err
	}

	// Line numbers go first so a line that loses both its N word and all
	// its commands drops out entirely.
	var transforms []program.Transform
	if req.ExpandCycles {
		transforms = append(transforms, program.ExpandDrillCycles())
	}
	if req.StripLineNumbers {
		transforms = append(transforms, program.RemoveLineNumbers())
	}
	if len(req.Strip) > 0 {
		transforms = append(transforms, program.RemoveCodes(req.Strip...))
	}
	if err := p.Apply(transforms...); err != nil {
		return nil, err
	}

	result := &ProgramResult{
		Blocks:   p.Blocks,
		Digest:   p.Digest(),
		Commands: p.CommandCount(),
	}
	if req.Render {
		result.Rendered = program.Render(p, program.WriteOptions{Comments: true})
	}
	logging.ProgramSummary(len(result.Blocks), result.Commands, result.Digest)
	return result, nil
}

// recordRun writes one program normalization to the run transcript store,
// when enabled. Failed runs are recorded with an error count so the history
// shows them.
func (s *Server) recordRun(ctx context.Context, input string, req NormalizeRequest, result *ProgramResult, failure error) {
	if s.runs == nil {
		return
	}

	name := req.Dialect
	if name == "" {
		name = "default"
	}
	run := runlog.Run{Input: input, Dialect: name}
	if result != nil {
		run.Blocks = len(result.Blocks)
		run.Commands = result.Commands
		run.Digest = result.Digest
	}
	if failure != nil {
		run.Errors = 1
	}

	if _, err := s.runs.Record(ctx, run); err != nil {
		logging.Error("run transcript write failed", "error", err)
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	if s.runs == nil {
		respondError(w, http.StatusNotFound, "RUNLOG_DISABLED", "Run transcripts are not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	respondList(w, runs, len(runs))
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	if s.runs == nil {
		respondError(w, http.StatusNotFound, "RUNLOG_DISABLED", "Run transcripts are not enabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Run ID is required")
		return
	}

	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, runlog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}
	respond(w, http.StatusOK, run)
}

// decodeNormalizeRequest decodes and validates a normalization request
// body, enforcing the configured size cap.
func decodeNormalizeRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (NormalizeRequest, bool) {
	var req NormalizeRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "Request body exceeds the configured limit")
			return req, false
		}
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return req, false
	}

	if req.Block == "" && req.Program == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "block or program is required")
		return req, false
	}
	if req.Block != "" && req.Program != "" {
		respondError(w, http.StatusBadRequest, "CONFLICTING_PARAMS", "block and program are mutually exclusive")
		return req, false
	}

	return req, true
}

// parseBoolParam reads an optional boolean query parameter. Absent yields
// nil; a malformed value responds with an error and reports !ok.
func parseBoolParam(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", name+" must be a boolean")
		return nil, false
	}
	return &parsed, true
}

// respondNormalizeError maps a normalization failure to its stable error
// code and structured details.
func respondNormalizeError(w http.ResponseWriter, err error) {
	respondAPIError(w, http.StatusUnprocessableEntity, &APIError{
		Code:    normalizeErrorCode(err),
		Message: err.Error(),
		Details: errorDetails(err),
	})
}

// normalizeErrorCode classifies a normalization failure by its sentinel.
func normalizeErrorCode(err error) string {
	var cycleErr *program.CycleError
	switch {
	case errors.Is(err, rs274.ErrMalformedToken):
		return "MALFORMED_TOKEN"
	case errors.Is(err, rs274.ErrDuplicateParameter):
		return "DUPLICATE_PARAMETER"
	case errors.Is(err, rs274.ErrDuplicateCommand):
		return "DUPLICATE_COMMAND"
	case errors.Is(err, rs274.ErrModalConflict):
		return "MODAL_CONFLICT"
	case errors.Is(err, rs274.ErrMissingParameter):
		return "MISSING_PARAMETER"
	case errors.Is(err, rs274.ErrUnconsumedParameter):
		return "UNCONSUMED_PARAMETER"
	case errors.Is(err, rs274.ErrUnknownCode):
		return "UNKNOWN_CODE"
	case errors.Is(err, rs274.ErrAmbiguousParameter):
		return "AMBIGUOUS_PARAMETER"
	case errors.As(err, &cycleErr):
		return "CYCLE_ERROR"
	}
	return "NORMALIZE_FAILED"
}

// errorDetails extracts the structured fields of a normalization failure.
func errorDetails(err error) map[string]interface{} {
	details := make(map[string]interface{})

	var blockErr *program.BlockError
	if errors.As(err, &blockErr) {
		details["line"] = blockErr.Line
		details["source"] = blockErr.Source
	}

	var malformed *rs274.MalformedTokenError
	if errors.As(err, &malformed) {
		details["text"] = malformed.Text
		details["offset"] = malformed.Offset
		if malformed.Reason != "" {
			details["reason"] = malformed.Reason
		}
	}
	var dupParam *rs274.DuplicateParameterError
	if errors.As(err, &dupParam) {
		details["letter"] = dupParam.Letter
	}
	var dupCmd *rs274.DuplicateCommandError
	if errors.As(err, &dupCmd) {
		details["code"] = dupCmd.Code
	}
	var conflict *rs274.ModalGroupConflictError
	if errors.As(err, &conflict) {
		details["group"] = conflict.Group
		details["codes"] = conflict.Codes
	}
	var missing *rs274.MissingParameterError
	if errors.As(err, &missing) {
		details["code"] = missing.Code
		details["letter"] = missing.Letter
	}
	var unconsumed *rs274.UnconsumedParameterError
	if errors.As(err, &unconsumed) {
		details["letters"] = unconsumed.Letters
	}
	var unknown *rs274.UnknownCodeError
	if errors.As(err, &unknown) {
		details["code"] = unknown.Code
	}
	var ambiguous *rs274.AmbiguousParameterError
	if errors.As(err, &ambiguous) {
		details["letter"] = ambiguous.Letter
		details["codes"] = ambiguous.Codes
	}
	var cycleErr *program.CycleError
	if errors.As(err, &cycleErr) {
		details["code"] = cycleErr.Code
		details["source"] = cycleErr.Source
		if len(cycleErr.Missing) > 0 {
			details["missing"] = cycleErr.Missing
		}
		if cycleErr.Reason != "" {
			details["reason"] = cycleErr.Reason
		}
	}

	if len(details) == 0 {
		return nil
	}
	return details
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondAPIError(w, status, &APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *APIError) {
	response := APIResponse{
		Success: false,
		Error:   apiErr,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

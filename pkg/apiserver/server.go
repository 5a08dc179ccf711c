// Package apiserver exposes the support pipeline over HTTP: the
// synchronous ticket-processing entry point, the per-day audit query
// surface and a health check.
package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/doxa-platform/triage/pkg/auditlog"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/pipeline"
	"github.com/doxa-platform/triage/pkg/tracing"
)

// NewServerOptions wires the HTTP layer's collaborators.
type NewServerOptions struct {
	Pipeline *pipeline.Pipeline

	// Audit serves GET /api/v1/audit/records. Nil disables the surface.
	Audit auditlog.Store

	Port int
}

// Server is the HTTP front of the pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	audit    auditlog.Store
	port     int
}

// NewServer builds a Server.
func NewServer(options NewServerOptions) *Server {
	port := options.Port
	if port <= 0 {
		port = 8080
	}
	return &Server{
		pipeline: options.Pipeline,
		audit:    options.Audit,
		port:     port,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/tickets/process", s.handleProcessTicket)
	mux.HandleFunc("GET /api/v1/audit/records", s.handleAuditRecords)

	return mux
}

// Start runs the server until it fails. Blocking.
func (s *Server) Start() error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logging.Infof("Support API server listening on port %d", s.port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "healthy",
		"service": "triage-api",
	}
	if s.audit != nil {
		if err := s.audit.CheckConnection(r.Context()); err != nil {
			status["audit_store"] = "unreachable"
		} else {
			status["audit_store"] = "ok"
		}
	}
	s.writeJSONResponse(w, http.StatusOK, status)
}

// ProcessTicketRequest is the POST /api/v1/tickets/process payload.
type ProcessTicketRequest struct {
	Query    string `json:"query"`
	TicketID string `json:"ticket_id,omitempty"`
}

// ProcessTicketResponse pairs the pipeline result with its trace.
type ProcessTicketResponse struct {
	Result *pipeline.PipelineResult `json:"result"`
	Trace  *tracing.Summary         `json:"trace"`
}

func (s *Server) handleProcessTicket(w http.ResponseWriter, r *http.Request) {
	var req ProcessTicketRequest
	if err := s.parseJSONRequest(r, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, trace, err := s.pipeline.Process(r.Context(), req.Query, req.TicketID)
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		s.writeErrorResponse(w, http.StatusBadRequest, "EMPTY_QUERY", "query text is required")
		return
	}
	if err != nil {
		logging.Errorf("Ticket processing failed: %v", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "PROCESSING_FAILED",
			"ticket processing failed")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, ProcessTicketResponse{Result: result, Trace: trace})
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// AuditRecordsResponse is the GET /api/v1/audit/records payload.
type AuditRecordsResponse struct {
	Date    string             `json:"date"`
	Count   int                `json:"count"`
	Records []*auditlog.Record `json:"records"`
}

func (s *Server) handleAuditRecords(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "AUDIT_DISABLED",
			"audit log is not enabled")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if !dateRe.MatchString(date) {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_DATE",
			"date must be YYYY-MM-DD")
		return
	}

	records, err := s.audit.RecordsByDate(r.Context(), date)
	if errors.Is(err, auditlog.ErrNotFound) {
		s.writeJSONResponse(w, http.StatusOK, AuditRecordsResponse{Date: date, Records: []*auditlog.Record{}})
		return
	}
	if err != nil {
		logging.Errorf("Audit record lookup failed for %s: %v", date, err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "AUDIT_LOOKUP_FAILED",
			"could not read audit records")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, AuditRecordsResponse{
		Date:    date,
		Count:   len(records),
		Records: records,
	})
}

func (s *Server) parseJSONRequest(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      errorCode,
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	s.writeJSONResponse(w, statusCode, errorResponse)
}

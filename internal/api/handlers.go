package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cap-dcis-prompt-server/internal/audit"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/middleware"
	"github.com/cap-dcis-prompt-server/internal/service"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// caseRequest is the body of /validate and /prompts
type caseRequest struct {
	CaseID          string          `json:"case_id"`
	Data            domain.CaseData `json:"data"`
	IncludeEnvelope bool            `json:"include_envelope"`
	domain.CaseContext
}

// validateResponse reports a case that passed validation
type validateResponse struct {
	Valid            bool     `json:"valid"`
	CaseID           string   `json:"case_id,omitempty"`
	ChecklistVersion string   `json:"checklist_version"`
	Fingerprint      string   `json:"fingerprint"`
	Ignored          []string `json:"ignored,omitempty"`
}

// violationResponse is the 422 body for incomplete or invalid cases
type violationResponse struct {
	Error      *domain.APIError   `json:"error"`
	Violations []domain.Violation `json:"violations"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	cfg := s.configManager.GetConfig()
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"timestamp":         time.Now().UTC(),
		"version":           cfg.MCP.ServerVersion,
		"checklist_version": s.assembler.Schema().Version(),
		"audit_enabled":     s.audit != nil,
	})
}

// handleChecklist returns the sections and elements of the active checklist
func (s *Server) handleChecklist(c *gin.Context) {
	c.JSON(http.StatusOK, s.assembler.Schema().Describe())
}

// handleValidate checks a case without composing a prompt
func (s *Server) handleValidate(c *gin.Context) {
	req, ok := s.bindCase(c)
	if !ok {
		return
	}

	vc, err := s.assembler.Validate(req.Data)
	if err != nil {
		s.writeCaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, validateResponse{
		Valid:            true,
		CaseID:           req.CaseID,
		ChecklistVersion: s.assembler.Schema().Version(),
		Fingerprint:      vc.Fingerprint(),
		Ignored:          vc.Ignored(),
	})
}

// handleAssemble validates a case and returns its composed prompt
func (s *Server) handleAssemble(c *gin.Context) {
	req, ok := s.bindCase(c)
	if !ok {
		return
	}

	result, err := s.assembler.Assemble(c.Request.Context(), service.AssembleRequest{
		CaseID:          req.CaseID,
		RequestID:       c.GetString(middleware.CorrelationIDKey),
		Source:          domain.SourceHTTP,
		Data:            req.Data,
		IncludeEnvelope: req.IncludeEnvelope,
		Context:         req.CaseContext,
	})
	if err != nil {
		s.writeCaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleGetPrompt returns a previously assembled prompt by fingerprint
func (s *Server) handleGetPrompt(c *gin.Context) {
	fingerprint := c.Param("fingerprint")
	cached, ok, err := s.assembler.Lookup(c.Request.Context(), fingerprint)
	if err != nil {
		s.logger.WithError(err).WithField("fingerprint", fingerprint).Error("Prompt lookup failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrStorage, "Prompt lookup failed", "")
		return
	}
	if !ok {
		s.writeError(c, http.StatusNotFound, domain.ErrNotFound, "No prompt cached for fingerprint", fingerprint)
		return
	}
	c.JSON(http.StatusOK, cached)
}

// handleListAudit pages through recent assembly records
func (s *Server) handleListAudit(c *gin.Context) {
	if s.audit == nil {
		s.writeError(c, http.StatusServiceUnavailable, domain.ErrUnavailable, "Audit store is not configured", "")
		return
	}

	limit, err := queryInt(c, "limit", defaultAuditLimit)
	if err != nil || limit <= 0 || limit > maxAuditLimit {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid limit",
			fmt.Sprintf("limit must be between 1 and %d", maxAuditLimit))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid offset", "offset must be a non-negative integer")
		return
	}

	ctx := c.Request.Context()
	var records []*audit.AssemblyRecord
	if caseID := c.Query("case_id"); caseID != "" {
		records, err = s.audit.ListByCase(ctx, caseID)
	} else {
		records, err = s.audit.List(ctx, limit, offset)
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to list audit records")
		s.writeError(c, http.StatusInternalServerError, domain.ErrStorage, "Failed to list audit records", "")
		return
	}
	total, err := s.audit.Count(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to count audit records")
		s.writeError(c, http.StatusInternalServerError, domain.ErrStorage, "Failed to count audit records", "")
		return
	}

	if records == nil {
		records = []*audit.AssemblyRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// bindCase decodes the request body keeping numeric literals as json.Number
func (s *Server) bindCase(c *gin.Context) (*caseRequest, bool) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var req caseRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeError(c, http.StatusRequestEntityTooLarge, domain.ErrInvalidInput, "Request body too large",
				fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Request body is empty", "")
		default:
			s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Malformed JSON body", err.Error())
		}
		return nil, false
	}
	if dec.More() {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Malformed JSON body", "unexpected data after the request object")
		return nil, false
	}
	if req.Data == nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Missing case data", `request must contain a "data" object`)
		return nil, false
	}
	cc, err := req.CaseContext.Normalize()
	if err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid case context", err.Error())
		return nil, false
	}
	req.CaseContext = cc
	return &req, true
}

// writeCaseError maps assembler errors onto HTTP responses
func (s *Server) writeCaseError(c *gin.Context, err error) {
	var failure *domain.ValidationFailure
	if errors.As(err, &failure) {
		c.JSON(http.StatusUnprocessableEntity, violationResponse{
			Error: domain.NewAPIError(domain.ErrValidationFailed, "Case data failed validation",
				failure.Error(), c.GetString(middleware.CorrelationIDKey)),
			Violations: failure.Violations,
		})
		return
	}
	s.writeError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Prompt assembly failed", "")
}

func (s *Server) writeError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)),
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

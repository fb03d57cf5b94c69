package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cap-dcis-prompt-server/internal/batch"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/service"
)

// Prompt and resource names
const (
	PromptReport       = "dcis_report"
	ChecklistURI       = "checklist://cap-dcis-resection/definition"
	checklistMIMEType  = "application/json"
	reportCaseArgument = "case"
)

// registerPrompts exposes the report envelope as an MCP prompt and the
// checklist description as a resource
func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        PromptReport,
		Description: "Compose the CAP DCIS resection report prompt for one case, wrapped in the system and user envelope.",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        reportCaseArgument,
				Description: `Case as JSON: either the data object or {"id": ..., "report_date": ..., "clinical_history": ..., "data": {...}}`,
				Required:    true,
			},
		},
	}, s.handleReportPrompt)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         ChecklistURI,
		Name:        "checklist",
		Description: "Sections and data elements of the loaded checklist",
		MIMEType:    checklistMIMEType,
	}, s.handleChecklistResource)
}

func (s *Server) handleReportPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var args map[string]string
	if req != nil && req.Params != nil {
		args = req.Params.Arguments
	}
	return s.reportPrompt(ctx, args)
}

func (s *Server) handleChecklistResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := ChecklistURI
	if req != nil && req.Params != nil {
		uri = req.Params.URI
	}
	return s.checklistResource(uri)
}

// reportPrompt assembles the case held in the "case" argument. Rejected cases
// are returned as errors listing every violation.
func (s *Server) reportPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	raw := args[reportCaseArgument]
	if raw == "" {
		return nil, fmt.Errorf("missing %q argument", reportCaseArgument)
	}

	kase, err := batch.ParseCase([]byte(raw), "json")
	if err != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", reportCaseArgument, err)
	}

	result, err := s.assembler.Assemble(ctx, service.AssembleRequest{
		CaseID:          kase.ID,
		Source:          domain.SourceMCP,
		Data:            kase.Data,
		IncludeEnvelope: true,
		Context:         kase.Context,
	})
	if err != nil {
		var failure *domain.ValidationFailure
		if errors.As(err, &failure) {
			return nil, failure
		}
		s.logger.WithError(err).Error("MCP prompt request failed")
		return nil, errors.New("prompt assembly failed")
	}

	env := result.Envelope
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("CAP DCIS resection report (%s)", result.ChecklistVersion),
		Messages: []*mcp.PromptMessage{
			{Role: "assistant", Content: &mcp.TextContent{Text: env.System + "\n\n" + env.Reasoning}},
			{Role: "user", Content: &mcp.TextContent{Text: env.Instructions + "\n\n" + env.User}},
		},
	}, nil
}

func (s *Server) checklistResource(uri string) (*mcp.ReadResourceResult, error) {
	if uri != ChecklistURI {
		return nil, fmt.Errorf("unknown resource %q", uri)
	}
	body, err := json.MarshalIndent(s.assembler.Schema().Describe(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding checklist: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: ChecklistURI, MIMEType: checklistMIMEType, Text: string(body)},
		},
	}, nil
}

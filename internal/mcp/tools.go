package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/service"
)

// caseArguments are the arguments of assemble_prompt and validate_case
type caseArguments struct {
	CaseID          string          `json:"case_id"`
	Data            domain.CaseData `json:"data"`
	IncludeEnvelope bool            `json:"include_envelope"`
	domain.CaseContext
}

// violationPayload is the JSON body of an error result for a rejected case
type violationPayload struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []domain.Violation `json:"violations"`
}

func (s *Server) handleAssemble(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.assemble(ctx, rawArguments(req)), nil
}

func (s *Server) handleValidate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.validate(rawArguments(req)), nil
}

func (s *Server) handleDescribe(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.assembler.Schema().Describe(), false), nil
}

// assemble runs the assembler on raw tool arguments
func (s *Server) assemble(ctx context.Context, raw json.RawMessage) *mcp.CallToolResult {
	args, err := decodeArguments(raw)
	if err != nil {
		return textError(err.Error())
	}

	result, err := s.assembler.Assemble(ctx, service.AssembleRequest{
		CaseID:          args.CaseID,
		Source:          domain.SourceMCP,
		Data:            args.Data,
		IncludeEnvelope: args.IncludeEnvelope,
		Context:         args.CaseContext,
	})
	if err != nil {
		return s.caseError(err)
	}
	return jsonResult(result, false)
}

// validate checks raw tool arguments without composing
func (s *Server) validate(raw json.RawMessage) *mcp.CallToolResult {
	args, err := decodeArguments(raw)
	if err != nil {
		return textError(err.Error())
	}

	vc, err := s.assembler.Validate(args.Data)
	if err != nil {
		return s.caseError(err)
	}
	return jsonResult(map[string]any{
		"valid":             true,
		"case_id":           args.CaseID,
		"checklist_version": s.assembler.Schema().Version(),
		"fingerprint":       vc.Fingerprint(),
		"ignored":           vc.Ignored(),
	}, false)
}

func (s *Server) caseError(err error) *mcp.CallToolResult {
	var failure *domain.ValidationFailure
	if errors.As(err, &failure) {
		return jsonResult(violationPayload{
			Code:       domain.ErrValidationFailed,
			Message:    failure.Error(),
			Violations: failure.Violations,
		}, true)
	}
	s.logger.WithError(err).Error("MCP tool call failed")
	return textError("prompt assembly failed")
}

// rawArguments re-encodes the SDK's decoded arguments so numbers can be read as json.Number
func rawArguments(req *mcp.CallToolRequest) json.RawMessage {
	if req == nil || req.Params == nil || req.Params.Arguments == nil {
		return nil
	}
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return nil
	}
	return raw
}

func decodeArguments(raw json.RawMessage) (*caseArguments, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New(`arguments must contain a "data" object`)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var args caseArguments
	err := dec.Decode(&args)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Data == nil {
		return nil, errors.New(`arguments must contain a "data" object`)
	}
	if args.CaseContext, err = args.CaseContext.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return &args, nil
}

func jsonResult(v any, isError bool) *mcp.CallToolResult {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textError(fmt.Sprintf("encoding result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: isError,
	}
}

func textError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}

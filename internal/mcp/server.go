// Package mcp exposes prompt assembly as Model Context Protocol tools, a
// report prompt and a checklist resource over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/service"
)

// Tool names
const (
	ToolAssemblePrompt    = "assemble_prompt"
	ToolValidateCase      = "validate_case"
	ToolDescribeChecklist = "describe_checklist"
)

// Server represents the prompt assembly MCP server
type Server struct {
	mcpServer *mcp.Server
	assembler *service.Assembler
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered
func NewServer(cfg domain.MCPConfig, assembler *service.Assembler, logger *logrus.Logger) *Server {
	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	s := &Server{
		mcpServer: mcp.NewServer(serverInfo, nil),
		assembler: assembler,
		logger:    logger,
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Start runs the server on stdin/stdout until the client disconnects or ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"checklist_version": s.assembler.Schema().Version(),
		"transport":         "stdio",
	}).Info("Starting MCP server")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers the assembly tools with the MCP SDK
func (s *Server) registerTools() {
	caseProperties := map[string]*jsonschema.Schema{
		"case_id": {Type: "string", Description: "Optional case identifier echoed in results and audit records"},
		"data": {
			Type:        "object",
			Description: "Checklist data element values keyed by element identifier",
		},
	}

	s.mcpServer.AddTool(&mcp.Tool{
		Name: ToolAssemblePrompt,
		Description: "Validate CAP DCIS resection case data and compose the section-ordered report prompt. " +
			"Incomplete or invalid cases return every violation as an error result.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"case_id": caseProperties["case_id"],
				"data":    caseProperties["data"],
				"include_envelope": {
					Type:        "boolean",
					Description: "Also return the system and user prompt envelope",
				},
				"report_date": {
					Type:        "string",
					Description: "Optional report date (YYYY-MM-DD) carried into the envelope",
				},
				"clinical_history": {
					Type:        "string",
					Description: "Optional clinical history carried into the envelope",
				},
			},
			Required: []string{"data"},
		},
	}, s.handleAssemble)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        ToolValidateCase,
		Description: "Check CAP DCIS resection case data against the checklist without composing a prompt.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: caseProperties,
			Required:   []string{"data"},
		},
	}, s.handleValidate)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        ToolDescribeChecklist,
		Description: "List the checklist sections and data elements with their kinds, allowed values and requiredness rules.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleDescribe)

	s.logger.WithField("tool_count", 3).Debug("Registered MCP tools")
}

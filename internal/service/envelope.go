package service

import (
	"fmt"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// Sentinels bracketing the structured answer a downstream model is asked to emit
const (
	JSONStart = "<JSON_START>"
	JSONEnd   = "<JSON_END>"
)

// DefaultInstructions is the task description sent with every composed report
const DefaultInstructions = "You are a pathology assistant helping to prepare a CAP compliant report for ductal carcinoma in situ " +
	"(DCIS) breast resection specimens. Use the provided structured data to generate a concise, factual " +
	"summary covering margin status, receptor testing, and any ancillary comments. Highlight missing data " +
	"as actionable questions back to the pathologist."

// DefaultModelName is recorded in envelopes when no model is configured
const DefaultModelName = "gpt-4o"

var (
	systemPrompt = fmt.Sprintf("You are an assistant that must think step-by-step before responding. "+
		"Only emit JSON output between the delimiters %s and %s.", JSONStart, JSONEnd)

	reasoningInstructions = fmt.Sprintf("Use a scratchpad to reason about the report before generating JSON. "+
		"Ensure that intermediate thoughts stay outside the %s/%s "+
		"delimiters so that only the final structured answer is enclosed.", JSONStart, JSONEnd)
)

// Envelope packages a composed report as a chat-style prompt
type Envelope struct {
	ModelName    string `json:"model_name"`
	System       string `json:"system"`
	Reasoning    string `json:"reasoning"`
	Instructions string `json:"instructions"`
	User         string `json:"user"`
}

// EnvelopeBuilder wraps composed reports with fixed instructions
type EnvelopeBuilder struct {
	instructions string
	modelName    string
}

// NewEnvelopeBuilder creates a builder, falling back to the defaults for empty arguments
func NewEnvelopeBuilder(instructions, modelName string) *EnvelopeBuilder {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModelName
	}
	return &EnvelopeBuilder{instructions: instructions, modelName: modelName}
}

// Build wraps report and its case context in an envelope
func (b *EnvelopeBuilder) Build(report string, cc domain.CaseContext) *Envelope {
	return &Envelope{
		ModelName:    b.modelName,
		System:       systemPrompt,
		Reasoning:    reasoningInstructions,
		Instructions: b.instructions,
		User:         UserPrompt(report, cc),
	}
}

// UserPrompt embeds a report after a reminder not to emit JSON before the start
// sentinel. Supplied case context is listed ahead of the report.
func UserPrompt(report string, cc domain.CaseContext) string {
	var b strings.Builder
	b.WriteString("Review the following report carefully. Do not produce any JSON output " +
		"until you explicitly encounter the token " + JSONStart + ".\n\n")
	if cc.ReportDate != "" {
		b.WriteString("Report date: " + cc.ReportDate + "\n")
	}
	if cc.ClinicalHistory != "" {
		b.WriteString("Clinical history: " + cc.ClinicalHistory + "\n")
	}
	if !cc.IsZero() {
		b.WriteString("\n")
	}
	b.WriteString("Report:\n" + strings.TrimSpace(report) + "\n")
	return b.String()
}

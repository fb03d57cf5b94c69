package domain

import "time"

// CachedPrompt is a composed prompt stored under its case fingerprint
type CachedPrompt struct {
	Fingerprint      string    `json:"fingerprint"`
	ChecklistVersion string    `json:"checklist_version"`
	Prompt           string    `json:"prompt"`
	CachedAt         time.Time `json:"cached_at"`
}

// Assembly outcomes shared by metrics and the audit trail
const (
	OutcomeAssembled = "assembled"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Entry points reported as the source of an assembly
const (
	SourceHTTP  = "http"
	SourceMCP   = "mcp"
	SourceBatch = "batch"
	SourceCLI   = "cli"
)

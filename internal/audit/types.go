// Package audit records the outcome of every prompt assembly.
// Records carry identifiers, checklist version, fingerprint and violation
// codes only. Case values are never stored.
package audit

import (
	"context"
	"io"
	"time"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// Status is the outcome of one assembly
type Status string

const (
	StatusAssembled Status = domain.OutcomeAssembled
	StatusRejected  Status = domain.OutcomeRejected
	StatusFailed    Status = domain.OutcomeFailed
)

// AssemblyRecord is one audit trail entry
type AssemblyRecord struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id,omitempty"`
	CaseID           string    `json:"case_id,omitempty"`
	Source           string    `json:"source"`                      // http, mcp, batch, cli
	ChecklistVersion string    `json:"checklist_version"`
	Status           Status    `json:"status"`
	Fingerprint      string    `json:"fingerprint,omitempty"`       // empty unless assembled
	ViolationCount   int       `json:"violation_count"`
	ViolationCodes   []string  `json:"violation_codes,omitempty"`   // distinct reason codes
	ViolatedElements []string  `json:"violated_elements,omitempty"` // element identifiers, never values
	DurationMS       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store defines the interface for audit storage operations.
type Store interface {
	// Save appends a record. A missing ID is generated and a zero CreatedAt set to now.
	Save(ctx context.Context, rec *AssemblyRecord) error

	// Get retrieves a record by ID. It returns nil, nil when no record exists.
	Get(ctx context.Context, id string) (*AssemblyRecord, error)

	// List returns records newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*AssemblyRecord, error)

	// ListByCase returns every record for a case ID, newest first.
	ListByCase(ctx context.Context, caseID string) ([]*AssemblyRecord, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Purge deletes records created before the cutoff and returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// ExportJSON writes all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads records from a JSON reader, skipping IDs already stored.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Records    []*AssemblyRecord `json:"records"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

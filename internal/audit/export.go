package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// prepare fills generated fields before a record is written. Timestamps are
// stored in UTC so text comparisons in SQLite order them correctly.
func prepare(rec *AssemblyRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

// joinList and splitList store string lists in a single text column
func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row selected with recordColumns
func scanRecord(s scanner) (*AssemblyRecord, error) {
	rec := &AssemblyRecord{}
	var status, codes, elements string

	err := s.Scan(
		&rec.ID, &rec.RequestID, &rec.CaseID, &rec.Source, &rec.ChecklistVersion,
		&status, &rec.Fingerprint, &rec.ViolationCount, &codes, &elements,
		&rec.DurationMS, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = Status(status)
	rec.ViolationCodes = splitList(codes)
	rec.ViolatedElements = splitList(elements)
	return rec, nil
}

const recordColumns = `id, request_id, case_id, source, checklist_version,
	status, fingerprint, violation_count, violation_codes, violated_elements,
	duration_ms, created_at`

// exportJSON writes every record of s
func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importJSON saves every record of an export not already present in s
func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Records {
		if rec.ID != "" {
			existing, err := s.Get(ctx, rec.ID)
			if err != nil {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}

		if err := s.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

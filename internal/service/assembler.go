package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cap-dcis-prompt-server/internal/audit"
	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
)

// PromptCache stores composed prompts by fingerprint
type PromptCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.CachedPrompt, bool, error)
	Set(ctx context.Context, prompt *domain.CachedPrompt) error
}

// AuditRecorder persists assembly outcomes
type AuditRecorder interface {
	Save(ctx context.Context, rec *audit.AssemblyRecord) error
}

// MetricsRecorder receives assembly observations
type MetricsRecorder interface {
	ObserveAssembly(outcome string, duration time.Duration)
	ObserveViolation(reason string)
	ObserveCacheLookup(hit bool)
}

// AssembleRequest is one case submitted for prompt assembly
type AssembleRequest struct {
	CaseID          string
	RequestID       string
	Source          string
	Data            domain.CaseData
	Context         domain.CaseContext // carried into the envelope only
	IncludeEnvelope bool
}

// AssembleResult is a composed prompt and the artefacts that produced it
type AssembleResult struct {
	CaseID           string                  `json:"case_id,omitempty"`
	ChecklistVersion string                  `json:"checklist_version"`
	Fingerprint      string                  `json:"fingerprint"`
	Prompt           string                  `json:"prompt"`
	Fragments        []domain.PhraseFragment `json:"fragments"`
	Ignored          []string                `json:"ignored,omitempty"`
	Envelope         *Envelope               `json:"envelope,omitempty"`
	ProcessingTime   time.Duration           `json:"processing_time"`
}

// Assembler runs validate, resolve and compose for one schema
type Assembler struct {
	logger   *logrus.Logger
	schema   *checklist.Schema
	composer *Composer
	envelope *EnvelopeBuilder
	cache    PromptCache
	audit    AuditRecorder
	metrics  MetricsRecorder
}

// AssemblerOption configures optional collaborators
type AssemblerOption func(*Assembler)

// WithCache writes every assembled prompt through to c
func WithCache(c PromptCache) AssemblerOption {
	return func(a *Assembler) { a.cache = c }
}

// WithAuditRecorder records every outcome to r
func WithAuditRecorder(r AuditRecorder) AssemblerOption {
	return func(a *Assembler) { a.audit = r }
}

// WithMetrics reports observations to m
func WithMetrics(m MetricsRecorder) AssemblerOption {
	return func(a *Assembler) { a.metrics = m }
}

// WithEnvelope replaces the default envelope builder
func WithEnvelope(b *EnvelopeBuilder) AssemblerOption {
	return func(a *Assembler) { a.envelope = b }
}

// NewAssembler creates an assembler bound to schema
func NewAssembler(logger *logrus.Logger, schema *checklist.Schema, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		logger:   logger,
		schema:   schema,
		composer: NewComposer(schema),
		envelope: NewEnvelopeBuilder("", ""),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Schema returns the checklist the assembler validates against
func (a *Assembler) Schema() *checklist.Schema { return a.schema }

// Validate checks case data without composing a prompt
func (a *Assembler) Validate(data domain.CaseData) (*ValidatedCase, error) {
	vc, err := Validate(a.schema, data)
	var failure *domain.ValidationFailure
	if errors.As(err, &failure) {
		a.observeViolations(failure)
	}
	return vc, err
}

// Assemble validates the case and, when complete, composes its prompt.
// A *domain.ValidationFailure is returned for incomplete or invalid cases.
// Cache, audit and metrics failures are logged and never change the outcome.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) (*AssembleResult, error) {
	start := time.Now()
	logger := a.logger.WithFields(logrus.Fields{
		"case_id":    req.CaseID,
		"request_id": req.RequestID,
		"source":     req.Source,
	})

	result, err := a.assemble(req)
	elapsed := time.Since(start)

	var failure *domain.ValidationFailure
	switch {
	case err == nil:
		result.ProcessingTime = elapsed
		a.store(ctx, logger, result)
		a.record(ctx, logger, req, domain.OutcomeAssembled, result.Fingerprint, nil, elapsed)
		logger.WithFields(logrus.Fields{
			"fingerprint":     result.Fingerprint,
			"fragments":       len(result.Fragments),
			"ignored":         len(result.Ignored),
			"processing_time": elapsed,
		}).Info("Prompt assembled")

	case errors.As(err, &failure):
		a.observeViolations(failure)
		a.record(ctx, logger, req, domain.OutcomeRejected, "", failure, elapsed)
		logger.WithFields(logrus.Fields{
			"violations": len(failure.Violations),
			"codes":      failure.Codes(),
		}).Info("Case rejected")

	default:
		a.record(ctx, logger, req, domain.OutcomeFailed, "", nil, elapsed)
		logger.WithError(err).Error("Prompt assembly failed")
	}
	return result, err
}

// assemble is the side-effect free pipeline
func (a *Assembler) assemble(req AssembleRequest) (*AssembleResult, error) {
	vc, err := Validate(a.schema, req.Data)
	if err != nil {
		return nil, err
	}

	fragments, err := Resolve(a.schema, vc)
	if err != nil {
		return nil, fmt.Errorf("resolving phrases: %w", err)
	}

	prompt, err := a.composer.Compose(fragments)
	if err != nil {
		return nil, fmt.Errorf("composing prompt: %w", err)
	}

	result := &AssembleResult{
		CaseID:           req.CaseID,
		ChecklistVersion: a.schema.Version(),
		Fingerprint:      vc.Fingerprint(),
		Prompt:           prompt,
		Fragments:        fragments,
		Ignored:          vc.Ignored(),
	}
	if req.IncludeEnvelope {
		result.Envelope = a.envelope.Build(prompt, req.Context)
	}
	return result, nil
}

// Lookup returns a previously assembled prompt by fingerprint
func (a *Assembler) Lookup(ctx context.Context, fingerprint string) (*domain.CachedPrompt, bool, error) {
	if a.cache == nil {
		return nil, false, nil
	}
	cached, ok, err := a.cache.Get(ctx, fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("reading prompt cache: %w", err)
	}
	if a.metrics != nil {
		a.metrics.ObserveCacheLookup(ok)
	}
	return cached, ok, nil
}

func (a *Assembler) store(ctx context.Context, logger *logrus.Entry, result *AssembleResult) {
	if a.cache == nil {
		return
	}
	err := a.cache.Set(ctx, &domain.CachedPrompt{
		Fingerprint:      result.Fingerprint,
		ChecklistVersion: result.ChecklistVersion,
		Prompt:           result.Prompt,
		CachedAt:         time.Now().UTC(),
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to cache prompt")
	}
}

func (a *Assembler) record(ctx context.Context, logger *logrus.Entry, req AssembleRequest,
	outcome, fingerprint string, failure *domain.ValidationFailure, elapsed time.Duration) {
	if a.metrics != nil {
		a.metrics.ObserveAssembly(outcome, elapsed)
	}
	if a.audit == nil {
		return
	}

	rec := &audit.AssemblyRecord{
		RequestID:        req.RequestID,
		CaseID:           req.CaseID,
		Source:           req.Source,
		ChecklistVersion: a.schema.Version(),
		Status:           audit.Status(outcome),
		Fingerprint:      fingerprint,
		DurationMS:       elapsed.Milliseconds(),
	}
	if failure != nil {
		rec.ViolationCount = len(failure.Violations)
		for _, code := range failure.Codes() {
			rec.ViolationCodes = append(rec.ViolationCodes, string(code))
		}
		for _, v := range failure.Violations {
			rec.ViolatedElements = append(rec.ViolatedElements, v.Element)
		}
	}
	if err := a.audit.Save(ctx, rec); err != nil {
		logger.WithError(err).Warn("Failed to record assembly audit")
	}
}

func (a *Assembler) observeViolations(failure *domain.ValidationFailure) {
	if a.metrics == nil {
		return
	}
	for _, v := range failure.Violations {
		a.metrics.ObserveViolation(string(v.Reason))
	}
}

package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
)

// ValidatedCase is case data proven complete against one schema.
// It can only be produced by Validate.
type ValidatedCase struct {
	schema  *checklist.Schema
	values  map[string]domain.Value
	ignored []string
}

// Schema returns the schema the case was validated against
func (vc *ValidatedCase) Schema() *checklist.Schema { return vc.schema }

// Value returns the normalized value of a present element
func (vc *ValidatedCase) Value(id string) (domain.Value, bool) {
	v, ok := vc.values[id]
	return v, ok
}

// Len returns the number of present elements
func (vc *ValidatedCase) Len() int { return len(vc.values) }

// Ignored returns the supplied identifiers that are not part of the schema, sorted
func (vc *ValidatedCase) Ignored() []string {
	return append([]string(nil), vc.ignored...)
}

// Values returns a copy of the normalized values keyed by element identifier
func (vc *ValidatedCase) Values() map[string]domain.Value {
	out := make(map[string]domain.Value, len(vc.values))
	for k, v := range vc.values {
		out[k] = v
	}
	return out
}

// Fingerprint is a stable digest of the checklist version and the normalized
// values. Identical cases under the same checklist share a fingerprint.
func (vc *ValidatedCase) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "checklist=%s\n", vc.schema.Version())
	for el := range vc.schema.ElementsInOrder() {
		v, ok := vc.values[el.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(h, "%s=%s:%q\n", el.ID, v.Kind, v.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// caseState tracks validated values and resolved requiredness during evaluation
type caseState struct {
	values   map[string]domain.Value
	required map[string]bool
}

func (s *caseState) Lookup(id string) (domain.Value, bool) {
	v, ok := s.values[id]
	return v, ok
}

func (s *caseState) IsRequired(id string) bool { return s.required[id] }

// Validate checks case data against the schema. Elements are evaluated in
// dependency order so each rule sees the final state of what it references.
// All problems are collected: on failure the error is a *domain.ValidationFailure
// listing every violation in canonical schema order.
func Validate(schema *checklist.Schema, data domain.CaseData) (*ValidatedCase, error) {
	if schema == nil {
		return nil, fmt.Errorf("validate: nil schema")
	}

	state := &caseState{
		values:   make(map[string]domain.Value),
		required: make(map[string]bool),
	}
	var violations []domain.Violation

	for el := range schema.EvaluationOrder() {
		required, reason := effectiveRequirement(el, state)
		state.required[el.ID] = required

		raw, supplied := data[el.ID]
		if !supplied || isAbsent(raw) {
			if required {
				violations = append(violations, domain.Violation{
					Element: el.ID,
					Reason:  domain.ReasonMissingRequired,
					Message: missingMessage(el, reason),
				})
			}
			continue
		}

		v, err := normalize(el, raw)
		if err != nil {
			violations = append(violations, domain.Violation{
				Element: el.ID,
				Reason:  domain.ReasonInvalidValue,
				Message: fmt.Sprintf("%s: %v", el.Label, err),
			})
			continue
		}
		state.values[el.ID] = v
	}

	if len(violations) > 0 {
		sort.SliceStable(violations, func(i, j int) bool {
			pi, _ := schema.Position(violations[i].Element)
			pj, _ := schema.Position(violations[j].Element)
			return pi < pj
		})
		return nil, &domain.ValidationFailure{Violations: violations}
	}

	var ignored []string
	for id := range data {
		if !schema.Has(id) {
			ignored = append(ignored, id)
		}
	}
	sort.Strings(ignored)

	return &ValidatedCase{schema: schema, values: state.values, ignored: ignored}, nil
}

// effectiveRequirement returns whether el is required and, when a rule made
// it so, the rule's description.
func effectiveRequirement(el domain.DataElement, state domain.CaseState) (bool, string) {
	if el.Required {
		return true, ""
	}
	for _, rule := range el.Rules {
		if rule.Condition.Holds(state) {
			return true, rule.Condition.String()
		}
	}
	return false, ""
}

// isAbsent treats null and blank strings as not supplied
func isAbsent(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

func missingMessage(el domain.DataElement, reason string) string {
	if reason == "" {
		return fmt.Sprintf("%s is required", el.Label)
	}
	return fmt.Sprintf("%s is required when %s", el.Label, reason)
}

// normalize checks a supplied value against the element's kind, domain and bounds
func normalize(el domain.DataElement, raw any) (domain.Value, error) {
	switch el.Kind {
	case domain.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected true or false, got %s", domain.Describe(raw))
		}
		return domain.BoolValue(b), nil

	case domain.KindEnum:
		s, ok := raw.(string)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected one of %s, got %s", strings.Join(el.Domain, ", "), domain.Describe(raw))
		}
		if !el.InDomain(s) {
			return domain.Value{}, fmt.Errorf("%q is not one of %s", s, strings.Join(el.Domain, ", "))
		}
		return domain.TokenValue(s), nil

	case domain.KindNumeric, domain.KindNumericWithUnit:
		v, err := domain.NumberValue(el.Kind, raw)
		if err != nil {
			return domain.Value{}, err
		}
		// integer elements also reject whole numbers written with a decimal point
		if el.Integer && (!v.IsInteger() || strings.Contains(v.Number, ".")) {
			return domain.Value{}, fmt.Errorf("%s is not a whole number", v.Number)
		}
		if el.Min != nil && v.Float < *el.Min {
			return domain.Value{}, fmt.Errorf("%s is below the minimum of %v", v.Number, *el.Min)
		}
		if el.Max != nil && v.Float > *el.Max {
			return domain.Value{}, fmt.Errorf("%s is above the maximum of %v", v.Number, *el.Max)
		}
		return v, nil

	case domain.KindText:
		s, ok := raw.(string)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected text, got %s", domain.Describe(raw))
		}
		return domain.TextValue(strings.TrimSpace(s)), nil
	}
	return domain.Value{}, fmt.Errorf("unsupported value kind %q", el.Kind)
}

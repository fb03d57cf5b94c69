package checklist

import (
	"strings"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// elementFromDefinition checks the shape of one element definition
func elementFromDefinition(def ElementDefinition, section string, ordinal int) (domain.DataElement, error) {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		return domain.DataElement{}, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "",
			"element %d of section %q has no identifier", ordinal, section)
	}
	if !def.Kind.Valid() {
		return domain.DataElement{}, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id,
			"unknown value kind %q", def.Kind)
	}

	label := def.Label
	if strings.TrimSpace(label) == "" {
		label = id
	}

	el := domain.DataElement{
		ID:       id,
		Label:    label,
		Kind:     def.Kind,
		Required: def.Required,
		Unit:     def.Unit,
		Min:      def.Min,
		Max:      def.Max,
		Integer:  def.Integer,
		Template: def.Templates.Clone(),
		Section:  section,
		Ordinal:  ordinal,
	}
	if def.Domain != nil {
		el.Domain = append([]string(nil), def.Domain...)
	}

	switch def.Kind {
	case domain.KindEnum:
		if len(el.Domain) == 0 {
			return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "enum element needs a non-empty domain")
		}
		seen := make(map[string]bool, len(el.Domain))
		for _, token := range el.Domain {
			if strings.TrimSpace(token) == "" {
				return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "domain contains an empty token")
			}
			if seen[token] {
				return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "duplicate domain token %q", token)
			}
			seen[token] = true
		}
	default:
		if len(el.Domain) > 0 {
			return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "only enum elements take a domain")
		}
	}

	if def.Kind == domain.KindNumericWithUnit && strings.TrimSpace(def.Unit) == "" {
		return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "numeric_with_unit element needs a unit")
	}
	if def.Kind != domain.KindNumericWithUnit && def.Unit != "" {
		return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "only numeric_with_unit elements take a unit")
	}
	if !def.Kind.IsNumeric() && (def.Min != nil || def.Max != nil || def.Integer) {
		return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "bounds apply only to numeric elements")
	}
	if def.Min != nil && def.Max != nil && *def.Min > *def.Max {
		return el, domain.NewConfigurationError(domain.ConfigInvalidDefinition, id, "min %v exceeds max %v", *def.Min, *def.Max)
	}

	return el, nil
}

// checkTemplates verifies a template exists for every wording the resolver can select
func checkTemplates(el *domain.DataElement) error {
	t := el.Template
	switch el.Kind {
	case domain.KindBoolean:
		if strings.TrimSpace(t.Affirmative) == "" {
			return domain.NewConfigurationError(domain.ConfigMissingTemplate, el.ID, "no affirmative template")
		}
		if strings.TrimSpace(t.Negative) == "" {
			return domain.NewConfigurationError(domain.ConfigMissingTemplate, el.ID, "no negative template")
		}
		if len(t.Tokens) > 0 || t.Value != "" {
			return domain.NewConfigurationError(domain.ConfigInvalidDefinition, el.ID, "boolean elements take only affirmative and negative templates")
		}
	case domain.KindEnum:
		for _, token := range el.Domain {
			if strings.TrimSpace(t.Tokens[token]) == "" {
				return domain.NewConfigurationError(domain.ConfigMissingTemplate, el.ID, "no template for token %q", token)
			}
		}
		for token := range t.Tokens {
			if !el.InDomain(token) {
				return domain.NewConfigurationError(domain.ConfigInvalidDefinition, el.ID, "template for token %q outside the domain", token)
			}
		}
		if t.Affirmative != "" || t.Negative != "" || t.Value != "" {
			return domain.NewConfigurationError(domain.ConfigInvalidDefinition, el.ID, "enum elements take only token templates")
		}
	default:
		if strings.TrimSpace(t.Value) == "" {
			return domain.NewConfigurationError(domain.ConfigMissingTemplate, el.ID, "no value template")
		}
		if !strings.Contains(t.Value, domain.SlotValue) {
			return domain.NewConfigurationError(domain.ConfigMissingTemplate, el.ID, "value template has no %s slot", domain.SlotValue)
		}
		if el.Kind != domain.KindNumericWithUnit && strings.Contains(t.Value, domain.SlotUnit) {
			return domain.NewConfigurationError(domain.ConfigInvalidDefinition, el.ID, "%s slot used on an element without a unit", domain.SlotUnit)
		}
		if t.Affirmative != "" || t.Negative != "" || len(t.Tokens) > 0 {
			return domain.NewConfigurationError(domain.ConfigInvalidDefinition, el.ID, "%s elements take only a value template", el.Kind)
		}
	}
	return nil
}

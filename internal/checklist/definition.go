// Package checklist builds immutable checklist schemas from static definitions.
//
// A definition lists sections in output order, each holding data elements with
// their value kind, allowed tokens, requiredness rules and phrase templates.
// New validates the whole definition up front: dependency cycles, unknown
// references and missing templates are reported as *domain.ConfigurationError
// so that a bad checklist stops the process before any case is served.
package checklist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cap-dcis-prompt-server/internal/domain"
	"gopkg.in/yaml.v3"
)

// Definition is the static configuration a schema is built from
type Definition struct {
	Version  string              `yaml:"version" json:"version"`
	Title    string              `yaml:"title" json:"title"`
	Sections []SectionDefinition `yaml:"sections" json:"sections"`
}

// SectionDefinition declares one output section and its elements in order
type SectionDefinition struct {
	Name     string              `yaml:"name" json:"name"`
	Heading  string              `yaml:"heading" json:"heading"`
	Elements []ElementDefinition `yaml:"elements" json:"elements"`
}

// ElementDefinition declares one data element
type ElementDefinition struct {
	ID           string             `yaml:"id" json:"id"`
	Label        string             `yaml:"label" json:"label"`
	Kind         domain.ValueKind   `yaml:"kind" json:"kind"`
	Domain       []string           `yaml:"domain,omitempty" json:"domain,omitempty"`
	Required     bool               `yaml:"required,omitempty" json:"required,omitempty"`
	Unit         string             `yaml:"unit,omitempty" json:"unit,omitempty"`
	Min          *float64           `yaml:"min,omitempty" json:"min,omitempty"`
	Max          *float64           `yaml:"max,omitempty" json:"max,omitempty"`
	Integer      bool               `yaml:"integer,omitempty" json:"integer,omitempty"`
	RequiredWhen []domain.Predicate `yaml:"required_when,omitempty" json:"required_when,omitempty"`
	Templates    domain.Templates   `yaml:"templates" json:"templates"`
}

// Parse decodes a YAML checklist definition. Unknown keys are rejected.
func Parse(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return def, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "", "checklist definition is empty")
		}
		return def, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "", "decoding checklist definition: %v", err)
	}
	return def, nil
}

// LoadFile reads, parses and builds a schema from a YAML definition file
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checklist definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(def)
}

package checklist

import (
	"iter"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// Section is a named group of elements rendered under one heading
type Section struct {
	Name     string   `json:"name"`
	Heading  string   `json:"heading"`
	Elements []string `json:"elements"`
}

// Schema is an immutable checklist. It is safe for concurrent use.
type Schema struct {
	version   string
	title     string
	sections  []Section
	elements  []domain.DataElement
	index     map[string]int
	bySection map[string]int
	deps      [][]int
	order     []int
}

// New builds a schema from a definition, failing with *domain.ConfigurationError
// when the definition is inconsistent.
func New(def Definition) (*Schema, error) {
	b := &builder{byID: make(map[string]*domain.DataElement)}
	return b.build(def)
}

// Version returns the checklist version string
func (s *Schema) Version() string { return s.version }

// Title returns the checklist title
func (s *Schema) Title() string { return s.title }

// Len returns the number of data elements
func (s *Schema) Len() int { return len(s.elements) }

// Sections returns the sections in canonical output order
func (s *Schema) Sections() []Section {
	out := make([]Section, len(s.sections))
	for i, sec := range s.sections {
		out[i] = Section{Name: sec.Name, Heading: sec.Heading, Elements: append([]string(nil), sec.Elements...)}
	}
	return out
}

// Section looks up a section by name
func (s *Schema) Section(name string) (Section, bool) {
	i, ok := s.bySection[name]
	if !ok {
		return Section{}, false
	}
	sec := s.sections[i]
	return Section{Name: sec.Name, Heading: sec.Heading, Elements: append([]string(nil), sec.Elements...)}, true
}

// SectionIndex returns the output position of a section
func (s *Schema) SectionIndex(name string) (int, bool) {
	i, ok := s.bySection[name]
	return i, ok
}

// Element looks up a data element by identifier
func (s *Schema) Element(id string) (domain.DataElement, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.DataElement{}, false
	}
	return s.elements[i].Clone(), true
}

// Position returns the canonical position of an element
func (s *Schema) Position(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Has reports whether id names an element of this schema
func (s *Schema) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// ElementsInOrder yields every element in canonical section/element order.
// The sequence is lazy and may be ranged over any number of times.
func (s *Schema) ElementsInOrder() iter.Seq[domain.DataElement] {
	return func(yield func(domain.DataElement) bool) {
		for i := range s.elements {
			if !yield(s.elements[i].Clone()) {
				return
			}
		}
	}
}

// EvaluationOrder yields elements in dependency order: every element comes
// after all elements its rules reference. Ties keep canonical order.
func (s *Schema) EvaluationOrder() iter.Seq[domain.DataElement] {
	return func(yield func(domain.DataElement) bool) {
		for _, i := range s.order {
			if !yield(s.elements[i].Clone()) {
				return
			}
		}
	}
}

// DependencyClosure returns the identifiers of every element that must be
// evaluated before id's requiredness is known, in canonical order.
func (s *Schema) DependencyClosure(id string) ([]string, error) {
	start, ok := s.index[id]
	if !ok {
		return nil, domain.NewConfigurationError(domain.ConfigUnknownReference, id, "element is not part of checklist %s", s.version)
	}
	seen := make([]bool, len(s.elements))
	stack := append([]int(nil), s.deps[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, s.deps[n]...)
	}

	var out []string
	for i, ok := range seen {
		if ok {
			out = append(out, s.elements[i].ID)
		}
	}
	return out, nil
}

// builder accumulates state while a definition is checked
type builder struct {
	byID map[string]*domain.DataElement
}

func (b *builder) build(def Definition) (*Schema, error) {
	if strings.TrimSpace(def.Version) == "" {
		return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "", "checklist version is required")
	}
	if len(def.Sections) == 0 {
		return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "", "checklist has no sections")
	}

	s := &Schema{
		version:   def.Version,
		title:     def.Title,
		index:     make(map[string]int),
		bySection: make(map[string]int),
	}

	// First pass: element shape, so rules can reference elements declared later.
	var rules [][]domain.Predicate
	for _, secDef := range def.Sections {
		name := strings.TrimSpace(secDef.Name)
		if name == "" {
			return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "", "section name is required")
		}
		if _, dup := s.bySection[name]; dup {
			return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, "", "duplicate section %q", name)
		}
		heading := secDef.Heading
		if strings.TrimSpace(heading) == "" {
			heading = name
		}
		sec := Section{Name: name, Heading: heading}

		for ordinal, elDef := range secDef.Elements {
			el, err := elementFromDefinition(elDef, name, ordinal)
			if err != nil {
				return nil, err
			}
			if _, dup := s.index[el.ID]; dup {
				return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, el.ID, "duplicate element identifier")
			}
			s.index[el.ID] = len(s.elements)
			s.elements = append(s.elements, el)
			rules = append(rules, elDef.RequiredWhen)
			sec.Elements = append(sec.Elements, el.ID)
		}

		s.bySection[name] = len(s.sections)
		s.sections = append(s.sections, sec)
	}
	for i := range s.elements {
		b.byID[s.elements[i].ID] = &s.elements[i]
	}

	// Second pass: templates and rules.
	s.deps = make([][]int, len(s.elements))
	for i := range s.elements {
		el := &s.elements[i]
		if err := checkTemplates(el); err != nil {
			return nil, err
		}

		for _, p := range rules[i] {
			cond, err := b.compilePredicate(el.ID, p)
			if err != nil {
				return nil, err
			}
			el.Rules = append(el.Rules, domain.DependencyRule{Predicate: p, Condition: cond})
			for _, ref := range cond.Refs() {
				s.deps[i] = appendUnique(s.deps[i], s.index[ref])
			}
		}
	}

	if cycle := findCycle(s.deps); cycle != nil {
		path := make([]string, len(cycle))
		for i, n := range cycle {
			path[i] = s.elements[n].ID
		}
		err := domain.NewConfigurationError(domain.ConfigDependencyCycle, path[0], "dependency cycle detected")
		err.Path = path
		return nil, err
	}
	s.order = topologicalOrder(s.deps)

	return s, nil
}

func appendUnique(list []int, n int) []int {
	for _, v := range list {
		if v == n {
			return list
		}
	}
	return append(list, n)
}

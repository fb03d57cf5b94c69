package domain

// ValueKind identifies how a data element's value is typed, validated and phrased
type ValueKind string

const (
	KindBoolean         ValueKind = "boolean"
	KindEnum            ValueKind = "enum"
	KindNumeric         ValueKind = "numeric"
	KindText            ValueKind = "text"
	KindNumericWithUnit ValueKind = "numeric_with_unit"
)

// Valid reports whether k is one of the known value kinds
func (k ValueKind) Valid() bool {
	switch k {
	case KindBoolean, KindEnum, KindNumeric, KindText, KindNumericWithUnit:
		return true
	}
	return false
}

// IsNumeric reports whether values of kind k are numbers
func (k ValueKind) IsNumeric() bool {
	return k == KindNumeric || k == KindNumericWithUnit
}

// Template slots substituted by the phrase resolver
const (
	SlotValue = "{value}"
	SlotUnit  = "{unit}"
)

// Templates holds the phrase templates of one data element.
// Which fields are meaningful depends on the element's value kind:
// booleans use Affirmative/Negative, enums use Tokens, all other kinds use Value.
type Templates struct {
	Affirmative string            `json:"affirmative,omitempty" yaml:"affirmative,omitempty"`
	Negative    string            `json:"negative,omitempty" yaml:"negative,omitempty"`
	Tokens      map[string]string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Value       string            `json:"value,omitempty" yaml:"value,omitempty"`
}

// Clone returns a deep copy of the templates
func (t Templates) Clone() Templates {
	out := t
	if t.Tokens != nil {
		out.Tokens = make(map[string]string, len(t.Tokens))
		for k, v := range t.Tokens {
			out.Tokens[k] = v
		}
	}
	return out
}

// DependencyRule makes an element conditionally required
type DependencyRule struct {
	Predicate Predicate `json:"predicate"`
	Condition Condition `json:"-"`
}

// DataElement is one checklist field
type DataElement struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Kind     ValueKind        `json:"kind"`
	Domain   []string         `json:"domain,omitempty"`
	Required bool             `json:"required"`
	Unit     string           `json:"unit,omitempty"`
	Min      *float64         `json:"min,omitempty"`
	Max      *float64         `json:"max,omitempty"`
	Integer  bool             `json:"integer,omitempty"`
	Rules    []DependencyRule `json:"required_when,omitempty"`
	Template Templates        `json:"templates"`
	Section  string           `json:"section"`
	Ordinal  int              `json:"ordinal"`
}

// Clone returns a deep copy so callers cannot reach schema internals
func (e DataElement) Clone() DataElement {
	out := e
	if e.Domain != nil {
		out.Domain = append([]string(nil), e.Domain...)
	}
	if e.Min != nil {
		v := *e.Min
		out.Min = &v
	}
	if e.Max != nil {
		v := *e.Max
		out.Max = &v
	}
	if e.Rules != nil {
		out.Rules = append([]DependencyRule(nil), e.Rules...)
	}
	out.Template = e.Template.Clone()
	return out
}

// InDomain reports whether token is an allowed enum value
func (e DataElement) InDomain(token string) bool {
	for _, d := range e.Domain {
		if d == token {
			return true
		}
	}
	return false
}

// CaseState is the view of a case that dependency conditions are evaluated against.
// Lookup only returns values that already passed validation.
type CaseState interface {
	Lookup(id string) (Value, bool)
	IsRequired(id string) bool
}

// Condition is a compiled dependency predicate
type Condition interface {
	Holds(state CaseState) bool
	Refs() []string
	String() string
}

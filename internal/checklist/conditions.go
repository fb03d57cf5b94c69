package checklist

import (
	"fmt"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// compilePredicate turns a declarative predicate into a condition, checking
// that every referenced element exists and every compared value is valid
// for the referenced element's kind.
func (b *builder) compilePredicate(owner string, p domain.Predicate) (domain.Condition, error) {
	op, err := p.Op()
	if err != nil {
		return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner, "required_when: %v", err)
	}

	if op.IsCombinator() {
		if p.Element != "" {
			return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner,
				"required_when: %s does not take an element", op)
		}
		switch op {
		case domain.OpNot:
			inner, err := b.compilePredicate(owner, *p.Not)
			if err != nil {
				return nil, err
			}
			return notCondition{inner: inner}, nil
		default:
			operands := p.All
			if op == domain.OpAny {
				operands = p.Any
			}
			if len(operands) == 0 {
				return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner,
					"required_when: %s needs at least one predicate", op)
			}
			conds := make([]domain.Condition, 0, len(operands))
			for _, operand := range operands {
				c, err := b.compilePredicate(owner, operand)
				if err != nil {
					return nil, err
				}
				conds = append(conds, c)
			}
			return groupCondition{any: op == domain.OpAny, conds: conds}, nil
		}
	}

	if p.Element == "" {
		return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner,
			"required_when: %s needs an element", op)
	}
	ref, ok := b.byID[p.Element]
	if !ok {
		return nil, domain.NewConfigurationError(domain.ConfigUnknownReference, owner,
			"required_when references unknown element %q", p.Element)
	}

	switch op {
	case domain.OpPresent:
		return presenceCondition{element: ref.ID, want: true}, nil
	case domain.OpAbsent:
		return presenceCondition{element: ref.ID, want: false}, nil
	case domain.OpRequired:
		return requiredCondition{element: ref.ID}, nil
	case domain.OpEquals, domain.OpNotEquals:
		raw := p.Equals
		if op == domain.OpNotEquals {
			raw = p.NotEquals
		}
		v, err := literalFor(ref, raw)
		if err != nil {
			return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner,
				"required_when: %s %s: %v", ref.ID, op, err)
		}
		return matchCondition{element: ref.ID, values: []domain.Value{v}, negate: op == domain.OpNotEquals}, nil
	case domain.OpIn:
		if len(p.In) == 0 {
			return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner,
				"required_when: %s in: needs at least one value", ref.ID)
		}
		values := make([]domain.Value, 0, len(p.In))
		for _, raw := range p.In {
			v, err := literalFor(ref, raw)
			if err != nil {
				return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner,
					"required_when: %s in: %v", ref.ID, err)
			}
			values = append(values, v)
		}
		return matchCondition{element: ref.ID, values: values}, nil
	}
	return nil, domain.NewConfigurationError(domain.ConfigInvalidDefinition, owner, "required_when: unsupported operator %s", op)
}

// literalFor normalizes a predicate comparison value against the referenced element
func literalFor(ref *domain.DataElement, raw any) (domain.Value, error) {
	switch ref.Kind {
	case domain.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected a boolean, got %s", domain.Describe(raw))
		}
		return domain.BoolValue(b), nil
	case domain.KindEnum:
		s, ok := raw.(string)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected a token, got %s", domain.Describe(raw))
		}
		if !ref.InDomain(s) {
			return domain.Value{}, fmt.Errorf("%q is not one of %s", s, strings.Join(ref.Domain, ", "))
		}
		return domain.TokenValue(s), nil
	case domain.KindNumeric, domain.KindNumericWithUnit:
		return domain.NumberValue(ref.Kind, raw)
	default:
		s, ok := raw.(string)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected text, got %s", domain.Describe(raw))
		}
		return domain.TextValue(s), nil
	}
}

// matchCondition holds when the element is present and equals one of values.
// Negated, it holds when the element is present and equals none of them.
type matchCondition struct {
	element string
	values  []domain.Value
	negate  bool
}

func (c matchCondition) Holds(state domain.CaseState) bool {
	v, ok := state.Lookup(c.element)
	if !ok {
		return false
	}
	matched := false
	for _, want := range c.values {
		if v.Equal(want) {
			matched = true
			break
		}
	}
	return matched != c.negate
}

func (c matchCondition) Refs() []string { return []string{c.element} }

func (c matchCondition) String() string {
	if len(c.values) == 1 {
		op := "=="
		if c.negate {
			op = "!="
		}
		return fmt.Sprintf("%s %s %s", c.element, op, c.values[0])
	}
	parts := make([]string, len(c.values))
	for i, v := range c.values {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s in [%s]", c.element, strings.Join(parts, ", "))
}

type presenceCondition struct {
	element string
	want    bool
}

func (c presenceCondition) Holds(state domain.CaseState) bool {
	_, ok := state.Lookup(c.element)
	return ok == c.want
}

func (c presenceCondition) Refs() []string { return []string{c.element} }

func (c presenceCondition) String() string {
	if c.want {
		return c.element + " is present"
	}
	return c.element + " is absent"
}

type requiredCondition struct {
	element string
}

func (c requiredCondition) Holds(state domain.CaseState) bool {
	return state.IsRequired(c.element)
}

func (c requiredCondition) Refs() []string { return []string{c.element} }

func (c requiredCondition) String() string { return c.element + " is required" }

type groupCondition struct {
	any   bool
	conds []domain.Condition
}

func (c groupCondition) Holds(state domain.CaseState) bool {
	for _, cond := range c.conds {
		if cond.Holds(state) == c.any {
			return c.any
		}
	}
	return !c.any
}

func (c groupCondition) Refs() []string {
	var refs []string
	for _, cond := range c.conds {
		refs = append(refs, cond.Refs()...)
	}
	return refs
}

func (c groupCondition) String() string {
	parts := make([]string, len(c.conds))
	for i, cond := range c.conds {
		parts[i] = cond.String()
	}
	sep := " and "
	if c.any {
		sep = " or "
	}
	return "(" + strings.Join(parts, sep) + ")"
}

type notCondition struct {
	inner domain.Condition
}

func (c notCondition) Holds(state domain.CaseState) bool { return !c.inner.Holds(state) }

func (c notCondition) Refs() []string { return c.inner.Refs() }

func (c notCondition) String() string { return "not " + c.inner.String() }

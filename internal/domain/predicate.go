package domain

import (
	"fmt"
	"strings"
)

// Predicate is the declarative form of a dependency rule as it appears in
// checklist definitions. Exactly one operator must be set.
//
//	{element: margin_status, equals: all_negative}
//	{element: er_status, in: [positive, cannot_be_determined]}
//	{element: blocks_with_dcis, present: true}
//	{any: [{...}, {...}]}
type Predicate struct {
	Element   string      `json:"element,omitempty" yaml:"element,omitempty"`
	Equals    any         `json:"equals,omitempty" yaml:"equals,omitempty"`
	NotEquals any         `json:"not_equals,omitempty" yaml:"not_equals,omitempty"`
	In        []any       `json:"in,omitempty" yaml:"in,omitempty"`
	Present   bool        `json:"present,omitempty" yaml:"present,omitempty"`
	Absent    bool        `json:"absent,omitempty" yaml:"absent,omitempty"`
	Required  bool        `json:"required,omitempty" yaml:"required,omitempty"`
	All       []Predicate `json:"all,omitempty" yaml:"all,omitempty"`
	Any       []Predicate `json:"any,omitempty" yaml:"any,omitempty"`
	Not       *Predicate  `json:"not,omitempty" yaml:"not,omitempty"`
}

// PredicateOp names a predicate operator
type PredicateOp string

const (
	OpEquals    PredicateOp = "equals"
	OpNotEquals PredicateOp = "not_equals"
	OpIn        PredicateOp = "in"
	OpPresent   PredicateOp = "present"
	OpAbsent    PredicateOp = "absent"
	OpRequired  PredicateOp = "required"
	OpAll       PredicateOp = "all"
	OpAny       PredicateOp = "any"
	OpNot       PredicateOp = "not"
)

// Ops returns every operator set on p, in a fixed order
func (p Predicate) Ops() []PredicateOp {
	var ops []PredicateOp
	if p.Equals != nil {
		ops = append(ops, OpEquals)
	}
	if p.NotEquals != nil {
		ops = append(ops, OpNotEquals)
	}
	if p.In != nil {
		ops = append(ops, OpIn)
	}
	if p.Present {
		ops = append(ops, OpPresent)
	}
	if p.Absent {
		ops = append(ops, OpAbsent)
	}
	if p.Required {
		ops = append(ops, OpRequired)
	}
	if p.All != nil {
		ops = append(ops, OpAll)
	}
	if p.Any != nil {
		ops = append(ops, OpAny)
	}
	if p.Not != nil {
		ops = append(ops, OpNot)
	}
	return ops
}

// Op returns the single operator of p or an error when zero or several are set
func (p Predicate) Op() (PredicateOp, error) {
	ops := p.Ops()
	switch len(ops) {
	case 0:
		return "", fmt.Errorf("predicate has no operator")
	case 1:
		return ops[0], nil
	default:
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = string(op)
		}
		return "", fmt.Errorf("predicate sets several operators: %s", strings.Join(names, ", "))
	}
}

// IsCombinator reports whether op combines nested predicates
func (op PredicateOp) IsCombinator() bool {
	return op == OpAll || op == OpAny || op == OpNot
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// CaseData maps data element identifiers to supplied values.
// A missing key or a nil value means the element is absent.
type CaseData map[string]any

// ReasonCode classifies a violation
type ReasonCode string

const (
	ReasonMissingRequired ReasonCode = "missing_required"
	ReasonInvalidValue    ReasonCode = "invalid_value"
)

// Violation describes one problem found while validating a case
type Violation struct {
	Element string     `json:"element"`
	Reason  ReasonCode `json:"reason"`
	Message string     `json:"message"`
}

// PhraseFragment is the resolved text of one present data element
type PhraseFragment struct {
	Section string `json:"section"`
	Element string `json:"element"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// ReportDateLayout is the ISO date form of CaseContext.ReportDate
const ReportDateLayout = "2006-01-02"

// CaseContext is clinical context supplied alongside the checklist data. It is
// carried into the prompt envelope and never validated against the checklist.
type CaseContext struct {
	ReportDate      string `json:"report_date,omitempty" yaml:"report_date,omitempty"`
	ClinicalHistory string `json:"clinical_history,omitempty" yaml:"clinical_history,omitempty"`
}

// IsZero reports whether no context was supplied
func (c CaseContext) IsZero() bool {
	return c.ReportDate == "" && c.ClinicalHistory == ""
}

// Normalize trims the fields and checks that the report date is an ISO date
func (c CaseContext) Normalize() (CaseContext, error) {
	out := CaseContext{
		ReportDate:      strings.TrimSpace(c.ReportDate),
		ClinicalHistory: strings.TrimSpace(c.ClinicalHistory),
	}
	if out.ReportDate != "" {
		if _, err := time.Parse(ReportDateLayout, out.ReportDate); err != nil {
			return CaseContext{}, fmt.Errorf("report_date %q is not a YYYY-MM-DD date", out.ReportDate)
		}
	}
	return out, nil
}

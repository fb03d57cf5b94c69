package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
)

// ErrSchemaMismatch is returned when a validated case is used with a schema
// other than the one it was validated against.
var ErrSchemaMismatch = errors.New("validated case belongs to a different checklist schema")

// Resolve maps every present element of the case to its phrase fragment, in
// canonical schema order. Absent elements produce nothing.
func Resolve(schema *checklist.Schema, vc *ValidatedCase) ([]domain.PhraseFragment, error) {
	if vc == nil || schema == nil || vc.schema != schema {
		return nil, ErrSchemaMismatch
	}

	fragments := make([]domain.PhraseFragment, 0, len(vc.values))
	for el := range schema.ElementsInOrder() {
		v, ok := vc.values[el.ID]
		if !ok {
			continue
		}
		text, err := phrase(el, v)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, domain.PhraseFragment{
			Section: el.Section,
			Element: el.ID,
			Ordinal: el.Ordinal,
			Text:    text,
		})
	}
	return fragments, nil
}

// phrase selects and fills the template for one value
func phrase(el domain.DataElement, v domain.Value) (string, error) {
	t := el.Template
	switch el.Kind {
	case domain.KindBoolean:
		if v.Bool {
			return t.Affirmative, nil
		}
		return t.Negative, nil

	case domain.KindEnum:
		text, ok := t.Tokens[v.Token]
		if !ok {
			return "", domain.NewConfigurationError(domain.ConfigMissingTemplate, el.ID, "no template for token %q", v.Token)
		}
		return text, nil

	case domain.KindNumeric, domain.KindText:
		return strings.NewReplacer(domain.SlotValue, v.String()).Replace(t.Value), nil

	case domain.KindNumericWithUnit:
		return strings.NewReplacer(domain.SlotValue, v.String(), domain.SlotUnit, el.Unit).Replace(t.Value), nil
	}
	return "", fmt.Errorf("element %s: unsupported value kind %q", el.ID, el.Kind)
}

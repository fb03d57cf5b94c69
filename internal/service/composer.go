package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
)

const (
	// SentenceSeparator joins fragments within a section
	SentenceSeparator = " "
	// SectionSeparator joins rendered sections
	SectionSeparator = "\n\n"
)

// Composer renders phrase fragments into prompt text, one block per section
type Composer struct {
	schema *checklist.Schema
}

// NewComposer creates a composer bound to a schema's section order and headings
func NewComposer(schema *checklist.Schema) *Composer {
	return &Composer{schema: schema}
}

// Compose groups fragments by section in schema order, orders each section by
// ordinal and renders the heading followed by the section's sentences.
// Sections without fragments are left out.
func (c *Composer) Compose(fragments []domain.PhraseFragment) (string, error) {
	bySection := make(map[string][]domain.PhraseFragment)
	for _, f := range fragments {
		if _, ok := c.schema.SectionIndex(f.Section); !ok {
			return "", fmt.Errorf("fragment %s names unknown section %q", f.Element, f.Section)
		}
		bySection[f.Section] = append(bySection[f.Section], f)
	}

	var blocks []string
	for _, sec := range c.schema.Sections() {
		group := bySection[sec.Name]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Ordinal != group[j].Ordinal {
				return group[i].Ordinal < group[j].Ordinal
			}
			return group[i].Element < group[j].Element
		})

		sentences := make([]string, 0, len(group))
		for _, f := range group {
			if s := sentence(f.Text); s != "" {
				sentences = append(sentences, s)
			}
		}
		if len(sentences) == 0 {
			continue
		}
		blocks = append(blocks, sec.Heading+"\n"+strings.Join(sentences, SentenceSeparator))
	}
	return strings.Join(blocks, SectionSeparator), nil
}

// sentence trims a fragment and makes sure it ends with terminal punctuation
func sentence(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

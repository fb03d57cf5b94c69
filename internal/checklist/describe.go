package checklist

import "github.com/cap-dcis-prompt-server/internal/domain"

// Description is the serialisable view of a schema served to clients
type Description struct {
	Version  string               `json:"version"`
	Title    string               `json:"title"`
	Sections []SectionDescription `json:"sections"`
}

// SectionDescription lists one section's elements in canonical order
type SectionDescription struct {
	Name     string               `json:"name"`
	Heading  string               `json:"heading"`
	Elements []domain.DataElement `json:"elements"`
}

// Describe returns a deep copy of the schema suitable for JSON output
func (s *Schema) Describe() Description {
	d := Description{Version: s.version, Title: s.title}
	for _, sec := range s.sections {
		sd := SectionDescription{Name: sec.Name, Heading: sec.Heading}
		for _, id := range sec.Elements {
			sd.Elements = append(sd.Elements, s.elements[s.index[id]].Clone())
		}
		d.Sections = append(d.Sections, sd)
	}
	return d
}

// Required returns the identifiers of unconditionally required elements in canonical order
func (s *Schema) Required() []string {
	var out []string
	for i := range s.elements {
		if s.elements[i].Required {
			out = append(out, s.elements[i].ID)
		}
	}
	return out
}

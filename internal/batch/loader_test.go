package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_JSONShapes(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		body    string
		wantIDs []string
	}{
		{"bare object", `{"margin_positive": true}`, []string{"bare object.json#1"}},
		{"wrapped object", `{"id": "c-1", "data": {"margin_positive": true}}`, []string{"c-1"}},
		{"array", `[{"id": "a", "data": {}}, {"margin_positive": false}]`, []string{"a", "array.json#2"}},
		{"cases wrapper", `{"cases": [{"id": "x", "data": {}}, {"id": "y", "data": {}}]}`, []string{"x", "y"}},
		{"empty", ``, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".json", tt.body)
			cases, err := LoadFile(path)
			require.NoError(t, err)

			ids := []string{}
			for _, c := range cases {
				ids = append(ids, c.ID)
				assert.Equal(t, path, c.Source)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestLoadFile_KeepsNumericLiterals(t *testing.T) {
	dir := t.TempDir()

	jsonCases, err := LoadFile(writeFile(t, dir, "case.json", `{"closest_margin_distance": 2.50}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("2.50"), jsonCases[0].Data["closest_margin_distance"])

	yamlCases, err := LoadFile(writeFile(t, dir, "case.yaml", `
id: y-1
data:
  closest_margin_distance: 2.50
  nodes_examined: 3
  lymph_nodes_submitted: true
  comments: "2.50"
  procedure_other: ~
`))
	require.NoError(t, err)
	require.Len(t, yamlCases, 1)
	data := yamlCases[0].Data
	assert.Equal(t, "y-1", yamlCases[0].ID)
	assert.Equal(t, json.Number("2.50"), data["closest_margin_distance"])
	assert.Equal(t, json.Number("3"), data["nodes_examined"])
	assert.Equal(t, true, data["lymph_nodes_submitted"])
	assert.Equal(t, "2.50", data["comments"], "quoted scalars stay strings")
	assert.Nil(t, data["procedure_other"])
}

func TestLoadFile_YAMLDocumentsAndAnchors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases.yml", `
base: &base
  procedure: excision
---
id: second
data:
  procedure: total_mastectomy
`)
	cases, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "cases.yml#1", cases[0].ID)
	assert.Equal(t, "second", cases[1].ID)
	assert.Equal(t, "total_mastectomy", cases[1].Data["procedure"])
}

func TestLoadFile_JSONLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases.jsonl", `{"id": "l1", "data": {"size_extent": 12}}

{"id": "l2", "data": {}}
`)
	cases, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "l1", cases[0].ID)
	assert.Equal(t, json.Number("12"), cases[0].Data["size_extent"])
	assert.Equal(t, "l2", cases[1].ID)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := map[string]string{
		"bad.json":      `{"id": `,
		"trailing.json": `{} {}`,
		"bad.jsonl":     "{}\nnot json\n",
		"scalar.json":   `[1, 2]`,
		"badid.json":    `{"id": 7, "data": {}}`,
		"baddate.json":  `{"id": "d", "report_date": "March 2026", "data": {}}`,
		"history.json":  `{"id": "h", "clinical_history": 3, "data": {}}`,
		"bad.yaml":      "a: [unclosed\n",
		"notes.txt":     "hello",
	}
	for name, body := range tests {
		_, err := LoadFile(writeFile(t, dir, name, body))
		assert.Error(t, err, name)
	}

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"id": "b", "data": {}}`)
	writeFile(t, dir, "a.yaml", "id: a\ndata: {}\n")
	writeFile(t, dir, "README.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	extra := writeFile(t, t.TempDir(), "z.jsonl", `{"id": "z", "data": {}}`)

	cases, err := Load(dir, extra)
	require.NoError(t, err)

	var ids []string
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "z"}, ids)

	_, err = Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadFile_CaseContext(t *testing.T) {
	dir := t.TempDir()

	cases, err := LoadFile(writeFile(t, dir, "context.yaml", `
id: c-1
report_date: 2026-03-14
clinical_history: "  Screen-detected calcifications, left breast. "
data:
  necrosis: focal
---
necrosis: absent
`))
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, domain.CaseContext{
		ReportDate:      "2026-03-14",
		ClinicalHistory: "Screen-detected calcifications, left breast.",
	}, cases[0].Context)
	assert.True(t, cases[1].Context.IsZero(), "bare data objects carry no context")
}

func TestParseCase(t *testing.T) {
	c, err := ParseCase([]byte(`{"id": "p", "data": {"size_extent": 1.50}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, "p", c.ID)
	assert.Equal(t, json.Number("1.50"), c.Data["size_extent"])

	c, err = ParseCase([]byte("necrosis: focal\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, "focal", c.Data["necrosis"])

	_, err = ParseCase([]byte("a: 1\n---\nb: 2\n"), "yaml")
	assert.Error(t, err)

	_, err = ParseCase([]byte(`{}`), "toml")
	assert.Error(t, err)
}

package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

func TestResolve_Margins(t *testing.T) {
	schema := marginsSchema(t)

	vc, err := Validate(schema, domain.CaseData{"margin_distance_mm": 2.5, "margin_positive": false})
	require.NoError(t, err)

	fragments, err := Resolve(schema, vc)
	require.NoError(t, err)
	assert.Equal(t, []domain.PhraseFragment{
		{Section: "margins", Element: "margin_positive", Ordinal: 0, Text: "Margins are negative for DCIS"},
		{Section: "margins", Element: "margin_distance_mm", Ordinal: 1, Text: "The closest margin is 2.5 mm from DCIS"},
	}, fragments)
}

func TestResolve_TemplateKinds(t *testing.T) {
	schema := defaultSchema(t)

	data := completeCase()
	data["comments"] = "  Reviewed at tumor board.  "
	data["lymph_nodes_submitted"] = true
	data["lymph_node_status"] = "negative"
	data["nodes_examined"] = json.Number("3")

	vc, err := Validate(schema, data)
	require.NoError(t, err)

	fragments, err := Resolve(schema, vc)
	require.NoError(t, err)

	texts := make(map[string]string, len(fragments))
	for _, f := range fragments {
		texts[f.Element] = f.Text
	}

	assert.Equal(t, "The nuclear grade is II (intermediate)", texts["nuclear_grade"], "enum token template")
	assert.Equal(t, "The size (extent) of DCIS could be determined", texts["size_determinable"], "boolean affirmative")
	assert.Equal(t, "The estimated size (extent) of DCIS is at least 12 mm", texts["size_extent"], "numeric with unit")
	assert.Equal(t, "The closest margin is 2.50 mm from DCIS", texts["closest_margin_distance"], "input precision kept")
	assert.Equal(t, "3 lymph node(s) were examined", texts["nodes_examined"], "numeric")
	assert.Equal(t, "Reviewed at tumor board.", texts["comments"], "text is trimmed")
	assert.NotContains(t, texts, "tumor_site", "absent elements produce nothing")
	assert.Len(t, fragments, vc.Len())
}

func TestResolve_BilateralDiffuse(t *testing.T) {
	schema := defaultSchema(t)

	data := completeCase()
	data["specimen_laterality"] = "bilateral"
	data["tumor_site"] = "diffuse"

	vc, err := Validate(schema, data)
	require.NoError(t, err)

	fragments, err := Resolve(schema, vc)
	require.NoError(t, err)

	texts := make(map[string]string, len(fragments))
	for _, f := range fragments {
		texts[f.Element] = f.Text
	}
	assert.Equal(t, "The specimen is from both breasts", texts["specimen_laterality"])
	assert.Equal(t, "The tumor is diffuse, involving multiple quadrants", texts["tumor_site"])
}

func TestResolve_CanonicalOrder(t *testing.T) {
	schema := defaultSchema(t)

	vc, err := Validate(schema, completeCase())
	require.NoError(t, err)

	fragments, err := Resolve(schema, vc)
	require.NoError(t, err)

	last := -1
	for _, f := range fragments {
		pos, ok := schema.Position(f.Element)
		require.True(t, ok)
		assert.Greater(t, pos, last, "fragment %s out of order", f.Element)
		last = pos
	}
}

func TestResolve_SchemaMismatch(t *testing.T) {
	schema := marginsSchema(t)
	other := marginsSchema(t)

	vc, err := Validate(schema, domain.CaseData{"margin_positive": true})
	require.NoError(t, err)

	_, err = Resolve(other, vc)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Resolve(schema, nil)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

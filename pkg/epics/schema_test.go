package epics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaExpand(t *testing.T) {
	schema := &Schema{
		Version: "test",
		Fields: map[string]Field{
			"LensSelect": {Suffix: "LensSelect"},
			"Status":     {Suffix: "Status", Access: ReadOnly, AsString: true},
		},
		Groups: map[string]Group{
			"Camera0": {
				Suffix: "Camera0",
				Schema: &Schema{
					Fields: map[string]Field{
						"RotationName": {Suffix: "RotationPVName"},
					},
					Formatted: map[string]FormattedField{
						"Pos":    {Token: "Pos"},
						"PVName": {Token: "Name"},
					},
				},
			},
		},
	}

	expanded, err := schema.Expand("2bm:MCTOptics:")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"LensSelect":           "2bm:MCTOptics:LensSelect",
		"Status":               "2bm:MCTOptics:Status",
		"Camera0.RotationName": "2bm:MCTOptics:Camera0RotationPVName",
		"Camera0.Pos":          "2bm:MCTOptics:CameraPos0",
		"Camera0.PVName":       "2bm:MCTOptics:CameraName0",
	}, expanded)
}

func TestSchemaExpandDuplicatePV(t *testing.T) {
	schema := &Schema{
		Fields: map[string]Field{
			"A": {Suffix: "Same"},
			"B": {Suffix: "Same"},
		},
	}

	_, err := schema.Expand("prefix:")
	assert.Error(t, err)
}

func TestSchemaExpandMissingGroupSchema(t *testing.T) {
	schema := &Schema{
		Groups: map[string]Group{
			"Broken": {Suffix: "Broken"},
		},
	}

	_, err := schema.Expand("prefix:")
	assert.Error(t, err)
}

func TestSchemaPVNames(t *testing.T) {
	schema := &Schema{
		Fields: map[string]Field{
			"B": {Suffix: "B"},
			"A": {Suffix: "A"},
		},
	}

	names, err := schema.PVNames("p:")
	require.NoError(t, err)
	assert.Equal(t, []string{"p:A", "p:B"}, names)
}

package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "location records",
			json: `[{"name":"Lin","value":"Harbor","avatar":"a.jpg","statement":"x","position":{"top":20,"left":30}}]`,
		},
		{
			name: "progress records",
			json: `[{"name":"Lin","progress":-20,"avatar":"a.jpg","statement":"x"}]`,
		},
		{name: "empty list", json: `[]`},
		{name: "object instead of list", json: `{"name":"Lin"}`, wantErr: true},
		{name: "missing avatar", json: `[{"name":"Lin","statement":"x"}]`, wantErr: true},
		{name: "empty name", json: `[{"name":"","avatar":"a","statement":"x"}]`, wantErr: true},
		{name: "progress out of range", json: `[{"name":"Lin","progress":500,"avatar":"a","statement":"x"}]`, wantErr: true},
		{name: "progress not integer", json: `[{"name":"Lin","progress":"+5","avatar":"a","statement":"x"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSnapshot(tt.json)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateSnapshot_NotJSON(t *testing.T) {
	err := ValidateSnapshot(`{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot document")
}

func TestValidateWallpapers(t *testing.T) {
	assert.NoError(t, ValidateWallpapers(`[{"type":"image","value":"https://x/y.jpg","name":"mine"}]`))
	assert.NoError(t, ValidateWallpapers(`[{"type":"color","value":"#000000"}]`))
	assert.Error(t, ValidateWallpapers(`[{"type":"video","value":"x"}]`))
	assert.Error(t, ValidateWallpapers(`[{"type":"image","value":""}]`))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["id"],"properties":{"id":{"type":"string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"id":"abc"}`))

	err := ValidateJSONString(schema, `{"id":5}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	err = ValidateJSONString(`{"type":`, `{}`)
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "(root)", Message: "bad"}}}
	assert.Equal(t, "validation failed:\n  1. (root): bad\n", err.Error())
}

package tool

import (
	"errors"
	"testing"

	"github.com/Strob0t/TuneForge/internal/domain"
)

func TestBuildSchema(t *testing.T) {
	tests := []struct {
		name string
		defs []ParameterDefinition
		want string
	}{
		{
			name: "no definitions",
			defs: nil,
			want: "",
		},
		{
			name: "only blank names",
			defs: []ParameterDefinition{{Name: "  ", Type: "string"}},
			want: "",
		},
		{
			name: "single required string with enum",
			defs: []ParameterDefinition{
				{Name: " unit ", Type: "string", Description: " Temperature unit ", Required: true, EnumValues: "celsius, fahrenheit,,"},
			},
			want: `{
  "type": "object",
  "properties": {
    "unit": {
      "type": "string",
      "description": "Temperature unit",
      "enum": [
        "celsius",
        "fahrenheit"
      ]
    }
  },
  "required": [
    "unit"
  ]
}`,
		},
		{
			name: "order preserved and no required key when none required",
			defs: []ParameterDefinition{
				{Name: "zeta", Type: "number"},
				{Name: "alpha", Type: "boolean", Description: "   "},
				{Name: "mid", Type: "integer", EnumValues: "1,2"},
			},
			want: `{
  "type": "object",
  "properties": {
    "zeta": {
      "type": "number"
    },
    "alpha": {
      "type": "boolean"
    },
    "mid": {
      "type": "integer"
    }
  }
}`,
		},
		{
			name: "duplicate name replaced in place",
			defs: []ParameterDefinition{
				{Name: "q", Type: "string", Description: "first"},
				{Name: "limit", Type: "integer"},
				{Name: "q", Type: "string", Description: "<second>", Required: true},
			},
			want: `{
  "type": "object",
  "properties": {
    "q": {
      "type": "string",
      "description": "<second>"
    },
    "limit": {
      "type": "integer"
    }
  },
  "required": [
    "q"
  ]
}`,
		},
		{
			name: "empty type defaults to string",
			defs: []ParameterDefinition{{Name: "city"}},
			want: `{
  "type": "object",
  "properties": {
    "city": {
      "type": "string"
    }
  }
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSchema(tt.defs)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildSchema() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestBuildSchemaUnsupportedType(t *testing.T) {
	_, err := BuildSchema([]ParameterDefinition{{Name: "x", Type: "date"}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

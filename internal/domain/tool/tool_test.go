package tool

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/TuneForge/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestRequestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantParams *string
		wantURL    *string
		wantDesc   *string
	}{
		{
			name:       "string parameters verbatim",
			body:       `{"tool_name":" get_weather ","parameters":"{ \"type\": \"object\" }"}`,
			wantParams: ptr(`{ "type": "object" }`),
		},
		{
			name:       "object parameters compacted",
			body:       `{"tool_name":"get_weather","parameters":{ "type" : "object" }}`,
			wantParams: ptr(`{"type":"object"}`),
		},
		{
			name:       "unparsable string kept as stored",
			body:       `{"tool_name":"broken","parameters":"{not json"}`,
			wantParams: ptr(`{not json`),
		},
		{
			name: "null parameters",
			body: `{"tool_name":"noop","parameters":null,"description":"  "}`,
		},
		{
			name:    "api url and description",
			body:    `{"tool_name":"search","description":" Web search ","api_url":"https://api.example.com/search"}`,
			wantURL: ptr("https://api.example.com/search"), wantDesc: ptr("Web search"),
		},
		{
			name:       "structured parameters win",
			body:       `{"tool_name":"lookup","parameters":"ignored","structured_parameters":[{"name":"id","type":"string","required":true}]}`,
			wantParams: ptr("{\n  \"type\": \"object\",\n  \"properties\": {\n    \"id\": {\n      \"type\": \"string\"\n    }\n  },\n  \"required\": [\n    \"id\"\n  ]\n}"),
		},
		{
			name: "empty structured parameters clear schema",
			body: `{"tool_name":"lookup","parameters":"ignored","structured_parameters":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatal(err)
			}
			f, err := req.Normalize()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Name != strings.TrimSpace(req.Name) {
				t.Errorf("name = %q", f.Name)
			}
			assertPtr(t, "parameters", f.Parameters, tt.wantParams)
			assertPtr(t, "api_url", f.APIURL, tt.wantURL)
			assertPtr(t, "description", f.Description, tt.wantDesc)
		})
	}
}

func assertPtr(t *testing.T, field string, got, want *string) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, got, want)
	case *got != *want:
		t.Errorf("%s = %q, want %q", field, *got, *want)
	}
}

func TestRequestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing name", Request{}},
		{"blank name", Request{Name: "   "}},
		{"long name", Request{Name: strings.Repeat("n", MaxNameLength+1)}},
		{"array parameters", Request{Name: "t", Parameters: json.RawMessage(`[1,2]`)}},
		{"relative url", Request{Name: "t", APIURL: ptr("/local/path")}},
		{"ftp url", Request{Name: "t", APIURL: ptr("ftp://example.com/x")}},
		{"bad structured type", Request{Name: "t", StructuredParameters: []ParameterDefinition{{Name: "a", Type: "object"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.req.Normalize(); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestExecuteRequestValidate(t *testing.T) {
	tests := []struct {
		args    string
		wantErr bool
	}{
		{`{"city":"Paris"}`, false},
		{`"text"`, false},
		{``, true},
		{`null`, true},
		{`  `, true},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			req := ExecuteRequest{Args: json.RawMessage(tt.args)}
			err := req.Validate()
			if tt.wantErr != (err != nil) {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

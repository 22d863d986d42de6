package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// ParameterDefinition is one row of the parameter builder form.
// EnumValues is a comma-separated list and only applies to string parameters.
type ParameterDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	EnumValues  string `json:"enum_values"`
}

// validTypes are the JSON Schema types the builder offers.
var validTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"array":   true,
}

// SchemaRequest is the body of the schema preview endpoint.
type SchemaRequest struct {
	Parameters []ParameterDefinition `json:"parameters"`
}

// SchemaResponse carries the generated schema text, "" when empty.
type SchemaResponse struct {
	Schema string `json:"schema"`
}

type property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type namedProperty struct {
	name string
	prop property
}

// properties marshals as a JSON object preserving definition order.
type properties []namedProperty

func (ps properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalRaw(p.name)
		if err != nil {
			return nil, err
		}
		val, err := marshalRaw(p.prop)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalRaw encodes v without HTML escaping or a trailing newline.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

type objectSchema struct {
	Type       string     `json:"type"`
	Properties properties `json:"properties"`
	Required   []string   `json:"required,omitempty"`
}

// BuildSchema turns parameter builder rows into a JSON Schema object,
// indented with two spaces. Rows with blank names are skipped; a later row
// with the same name replaces the earlier one in place. It returns "" when
// no properties remain.
func BuildSchema(defs []ParameterDefinition) (string, error) {
	var props properties
	index := make(map[string]int, len(defs))
	var required []string
	requiredSeen := make(map[string]bool, len(defs))

	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		typ := strings.TrimSpace(d.Type)
		if typ == "" {
			typ = "string"
		}
		if !validTypes[typ] {
			return "", fmt.Errorf("parameter %q has unsupported type %q: %w", name, typ, domain.ErrValidation)
		}

		p := property{Type: typ, Description: strings.TrimSpace(d.Description)}
		if typ == "string" {
			p.Enum = splitEnum(d.EnumValues)
		}

		if i, ok := index[name]; ok {
			props[i].prop = p
		} else {
			index[name] = len(props)
			props = append(props, namedProperty{name: name, prop: p})
		}

		if d.Required && !requiredSeen[name] {
			requiredSeen[name] = true
			required = append(required, name)
		}
	}

	if len(props) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(objectSchema{Type: "object", Properties: props, Required: required}); err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func splitEnum(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

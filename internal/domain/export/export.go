// Package export converts training conversations into OpenAI chat
// fine-tuning records and serializes them as JSON or JSON Lines.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
)

// Format is the export file format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// ParseFormat accepts "", "json" and "jsonl". The empty string means json.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatJSONL:
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("invalid format %q, must be 'json' or 'jsonl': %w", s, domain.ErrValidation)
	}
}

// ContentType returns the MIME type of the encoded file.
func (f Format) ContentType() string {
	if f == FormatJSONL {
		return "application/jsonl"
	}
	return "application/json"
}

// Filename derives the download name from a dataset's public ID. Every
// UTF-16 code unit outside ASCII [A-Za-z0-9] becomes an underscore, so a
// rune beyond the BMP yields two. The result is then lowercased.
func Filename(publicID string, f Format) string {
	var b strings.Builder
	b.WriteString("dataset_")
	for _, r := range publicID {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteString(strings.Repeat("_", max(utf16.RuneLen(r), 1)))
		}
	}
	b.WriteByte('.')
	b.WriteString(string(f))
	return b.String()
}

// Record is one fine-tuning example.
type Record struct {
	Messages          []Message `json:"messages"`
	Tools             []Tool    `json:"tools"`
	ParallelToolCalls bool      `json:"parallel_tool_calls"`
}

// Message is a chat message in fine-tuning shape. ToolCallID and Name are
// only emitted for tool messages, where they may be null.
type Message struct {
	Role       string            `json:"role"`
	Content    *string           `json:"content"`
	ToolCalls  []openai.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID nullableString    `json:"tool_call_id,omitzero"`
	Name       nullableString    `json:"name,omitzero"`
}

// Tool is a function definition in fine-tuning shape.
type Tool struct {
	Type     openai.ToolType `json:"type"`
	Function Function        `json:"function"`
}

// Function describes a callable function. Parameters is parsed JSON.
type Function struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// nullableString is a present-or-absent value that marshals as a string or null.
type nullableString struct {
	present bool
	value   *string
}

func present(s *string) nullableString { return nullableString{present: true, value: s} }

func (n nullableString) IsZero() bool { return !n.present }

func (n nullableString) MarshalJSON() ([]byte, error) {
	if n.value == nil {
		return []byte("null"), nil
	}
	return marshalNoEscape(*n.value)
}

var emptyObject = json.RawMessage(`{}`)

// BuildTools maps workspace tools to function definitions. A tool whose
// stored parameters are missing or not valid JSON gets an empty object; the
// IDs of tools with non-empty invalid parameters are returned so the caller
// can report them.
func BuildTools(tools []tool.Tool) (out []Tool, invalid []string) {
	out = make([]Tool, 0, len(tools))
	for i := range tools {
		t := &tools[i]
		params := emptyObject
		if t.Parameters != nil && strings.TrimSpace(*t.Parameters) != "" {
			if raw := json.RawMessage(*t.Parameters); json.Valid(raw) {
				params = raw
			} else {
				invalid = append(invalid, t.ID)
			}
		}
		out = append(out, Tool{
			Type: openai.ToolTypeFunction,
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out, invalid
}

// BuildMessage maps a stored message to its fine-tuning shape.
func BuildMessage(m *conversation.Message) Message {
	out := Message{Role: string(m.Role), Content: m.Content}

	if m.Role == conversation.RoleAssistant && len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]openai.ToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   tc.CallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.FunctionName,
					Arguments: tc.FunctionArguments,
				},
			})
		}
	}

	if m.Role == conversation.RoleTool {
		out.ToolCallID = present(m.ToolCallID)
		out.Name = present(m.Name)
	}
	return out
}

// Build produces one record per conversation, each carrying every tool.
// Conversations and messages are emitted in the order given.
func Build(tools []Tool, convs []conversation.Conversation) []Record {
	if tools == nil {
		tools = []Tool{}
	}
	records := make([]Record, 0, len(convs))
	for i := range convs {
		msgs := make([]Message, 0, len(convs[i].Messages))
		for j := range convs[i].Messages {
			msgs = append(msgs, BuildMessage(&convs[i].Messages[j]))
		}
		records = append(records, Record{Messages: msgs, Tools: tools})
	}
	return records
}

// Encode serializes records. JSON is the whole array indented by two
// spaces; JSONL is one compact record per line with no trailing newline.
func Encode(f Format, records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	switch f {
	case FormatJSONL:
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return nil, fmt.Errorf("encode record %d: %w", i, err)
			}
		}
	case FormatJSON:
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return nil, fmt.Errorf("encode records: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q: %w", f, domain.ErrValidation)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

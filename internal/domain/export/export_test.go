package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
)

func ptr[T any](v T) *T { return &v }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"jsonl", FormatJSONL, false},
		{"xml", "", true},
		{"JSON", "", true},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	if got := FormatJSON.ContentType(); got != "application/json" {
		t.Errorf("json content type = %q", got)
	}
	if got := FormatJSONL.ContentType(); got != "application/jsonl" {
		t.Errorf("jsonl content type = %q", got)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		id     string
		format Format
		want   string
	}{
		{"abc123", FormatJSON, "dataset_abc123.json"},
		{"AbC-12_x", FormatJSONL, "dataset_abc_12_x.jsonl"},
		{"a.b c", FormatJSON, "dataset_a_b_c.json"},
		{"Ünï", FormatJSON, "dataset__n_.json"},
		{"\u212Ax", FormatJSON, "dataset__x.json"},
		{"a\U0001F600b", FormatJSON, "dataset_a__b.json"},
		{"ÀB", FormatJSONL, "dataset__b.jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Filename(tt.id, tt.format); got != tt.want {
				t.Errorf("Filename(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	for _, records := range [][]Record{nil, {}} {
		got, err := Encode(FormatJSON, records)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "[]" {
			t.Errorf("json empty = %q, want []", got)
		}

		got, err = Encode(FormatJSONL, records)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "" {
			t.Errorf("jsonl empty = %q, want empty string", got)
		}
	}
}

func TestBuildToolsBadParameters(t *testing.T) {
	tools := []tool.Tool{
		{ID: "t1", Name: "good", Description: ptr("Good tool"), Parameters: ptr(`{"type":"object","properties":{}}`)},
		{ID: "t2", Name: "broken", Parameters: ptr(`{not json`)},
		{ID: "t3", Name: "none"},
		{ID: "t4", Name: "blank", Parameters: ptr("  ")},
	}

	out, invalid := BuildTools(tools)
	if len(out) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(out))
	}
	if len(invalid) != 1 || invalid[0] != "t2" {
		t.Errorf("invalid = %v, want [t2]", invalid)
	}
	for i, want := range []string{`{"type":"object","properties":{}}`, `{}`, `{}`, `{}`} {
		if string(out[i].Function.Parameters) != want {
			t.Errorf("tool %d parameters = %s, want %s", i, out[i].Function.Parameters, want)
		}
		if out[i].Type != "function" {
			t.Errorf("tool %d type = %q", i, out[i].Type)
		}
	}

	data, err := json.Marshal(out[1])
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"function","function":{"name":"broken","description":null,"parameters":{}}}`
	if string(data) != want {
		t.Errorf("marshal = %s\nwant %s", data, want)
	}
}

func TestBuildMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  conversation.Message
		want string
	}{
		{
			name: "system",
			msg:  conversation.Message{Role: conversation.RoleSystem, Content: ptr("You are helpful.")},
			want: `{"role":"system","content":"You are helpful."}`,
		},
		{
			name: "user with null content",
			msg:  conversation.Message{Role: conversation.RoleUser},
			want: `{"role":"user","content":null}`,
		},
		{
			name: "user ignores stray tool fields",
			msg:  conversation.Message{Role: conversation.RoleUser, Content: ptr("hi"), Name: ptr("x"), ToolCallID: ptr("y")},
			want: `{"role":"user","content":"hi"}`,
		},
		{
			name: "assistant with tool calls",
			msg: conversation.Message{
				Role: conversation.RoleAssistant,
				ToolCalls: []conversation.ToolCall{
					{CallID: "call_1", Type: "function", FunctionName: "get_weather", FunctionArguments: `{"city": "<Paris>"}`},
				},
			},
			want: `{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\": \"<Paris>\"}"}}]}`,
		},
		{
			name: "assistant without tool calls",
			msg:  conversation.Message{Role: conversation.RoleAssistant, Content: ptr("Sunny."), ToolCalls: []conversation.ToolCall{}},
			want: `{"role":"assistant","content":"Sunny."}`,
		},
		{
			name: "tool with ids",
			msg:  conversation.Message{Role: conversation.RoleTool, Content: ptr(`{"temp":21}`), ToolCallID: ptr("call_1"), Name: ptr("get_weather")},
			want: `{"role":"tool","content":"{\"temp\":21}","tool_call_id":"call_1","name":"get_weather"}`,
		},
		{
			name: "tool with null ids",
			msg:  conversation.Message{Role: conversation.RoleTool, Content: ptr("ok")},
			want: `{"role":"tool","content":"ok","tool_call_id":null,"name":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(FormatJSONL, []Record{{Messages: []Message{BuildMessage(&tt.msg)}, Tools: []Tool{}}})
			if err != nil {
				t.Fatal(err)
			}
			want := `{"messages":[` + tt.want + `],"tools":[],"parallel_tool_calls":false}`
			if string(got) != want {
				t.Errorf("got  %s\nwant %s", got, want)
			}
		})
	}
}

// TestRoundTripStoredFields checks that decoding the export reproduces
// role, content and tool calls exactly as stored.
func TestRoundTripStoredFields(t *testing.T) {
	conv := conversation.Conversation{
		Messages: []conversation.Message{
			{Role: conversation.RoleSystem, Content: ptr("Answer with emojis & <tags>.")},
			{Role: conversation.RoleUser, Content: ptr("Weather in Paris?\nThanks")},
			{Role: conversation.RoleAssistant, ToolCalls: []conversation.ToolCall{
				{CallID: "call_a", Type: "function", FunctionName: "get_weather", FunctionArguments: `{"city":"Paris", "unit" : "c"}`},
				{CallID: "call_b", Type: "function", FunctionName: "get_time", FunctionArguments: `{}`},
			}},
			{Role: conversation.RoleTool, Content: ptr("21C"), ToolCallID: ptr("call_a"), Name: ptr("get_weather")},
			{Role: conversation.RoleAssistant, Content: ptr("It is 21°C ☀️")},
		},
	}

	for _, format := range []Format{FormatJSON, FormatJSONL} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Encode(format, Build(nil, []conversation.Conversation{conv}))
			if err != nil {
				t.Fatal(err)
			}

			var decoded []struct {
				Messages []struct {
					Role      string  `json:"role"`
					Content   *string `json:"content"`
					ToolCalls []struct {
						ID       string `json:"id"`
						Type     string `json:"type"`
						Function struct {
							Name      string `json:"name"`
							Arguments string `json:"arguments"`
						} `json:"function"`
					} `json:"tool_calls"`
				} `json:"messages"`
				Tools             []json.RawMessage `json:"tools"`
				ParallelToolCalls *bool             `json:"parallel_tool_calls"`
			}
			if format == FormatJSONL {
				data = []byte("[" + strings.ReplaceAll(string(data), "\n", ",") + "]")
			}
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(decoded) != 1 {
				t.Fatalf("expected 1 record, got %d", len(decoded))
			}
			rec := decoded[0]
			if rec.ParallelToolCalls == nil || *rec.ParallelToolCalls {
				t.Error("parallel_tool_calls must be present and false")
			}
			if rec.Tools == nil || len(rec.Tools) != 0 {
				t.Errorf("tools = %v, want empty array", rec.Tools)
			}
			if len(rec.Messages) != len(conv.Messages) {
				t.Fatalf("messages = %d, want %d", len(rec.Messages), len(conv.Messages))
			}
			for i, m := range conv.Messages {
				got := rec.Messages[i]
				if got.Role != string(m.Role) {
					t.Errorf("msg %d role = %q, want %q", i, got.Role, m.Role)
				}
				if (got.Content == nil) != (m.Content == nil) || (m.Content != nil && *got.Content != *m.Content) {
					t.Errorf("msg %d content = %v, want %v", i, got.Content, m.Content)
				}
				if m.Role != conversation.RoleAssistant {
					continue
				}
				if len(got.ToolCalls) != len(m.ToolCalls) {
					t.Fatalf("msg %d tool calls = %d, want %d", i, len(got.ToolCalls), len(m.ToolCalls))
				}
				for j, tc := range m.ToolCalls {
					g := got.ToolCalls[j]
					if g.ID != tc.CallID || g.Type != "function" || g.Function.Name != tc.FunctionName || g.Function.Arguments != tc.FunctionArguments {
						t.Errorf("msg %d call %d = %+v, want %+v", i, j, g, tc)
					}
				}
			}
		})
	}
}

func TestEncodeJSONIndentedAndJSONLLines(t *testing.T) {
	tools, _ := BuildTools([]tool.Tool{{Name: "ping", Parameters: ptr(`{"type":"object"}`)}})
	convs := []conversation.Conversation{
		{Messages: []conversation.Message{{Role: conversation.RoleUser, Content: ptr("a")}}},
		{Messages: []conversation.Message{{Role: conversation.RoleUser, Content: ptr("b")}}},
	}
	records := Build(tools, convs)

	jsonl, err := Encode(FormatJSONL, records)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(jsonl), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), jsonl)
	}
	wantFirst := `{"messages":[{"role":"user","content":"a"}],"tools":[{"type":"function","function":{"name":"ping","description":null,"parameters":{"type":"object"}}}],"parallel_tool_calls":false}`
	if lines[0] != wantFirst {
		t.Errorf("line 0 = %s\nwant    %s", lines[0], wantFirst)
	}

	js, err := Encode(FormatJSON, records[:1])
	if err != nil {
		t.Fatal(err)
	}
	wantJSON := `[
  {
    "messages": [
      {
        "role": "user",
        "content": "a"
      }
    ],
    "tools": [
      {
        "type": "function",
        "function": {
          "name": "ping",
          "description": null,
          "parameters": {
            "type": "object"
          }
        }
      }
    ],
    "parallel_tool_calls": false
  }
]`
	if string(js) != wantJSON {
		t.Errorf("json =\n%s\nwant\n%s", js, wantJSON)
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := Encode(Format("xml"), nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

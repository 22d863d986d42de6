package conversation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain"
)

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []Role{"", "function", "developer", "Assistant"} {
		if r.Valid() {
			t.Errorf("%q should be invalid", r)
		}
	}
}

func TestCreateRequestNormalize(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	req := CreateRequest{
		Tags: []string{" a ", "", "b", "a"},
		Messages: []CreateMessageRequest{
			{Role: RoleSystem},
			{Role: RoleUser},
		},
	}
	if err := req.Normalize(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Title != "Conversation 1700000000123" {
		t.Errorf("title = %q", req.Title)
	}
	if strings.Join(req.Tags, ",") != "a,b" {
		t.Errorf("tags = %v", req.Tags)
	}
}

func TestCreateRequestNormalizeRejectsBadMessage(t *testing.T) {
	req := CreateRequest{Title: "t", Messages: []CreateMessageRequest{{Role: "robot"}}}
	err := req.Normalize(time.Now())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "messages[0]") {
		t.Errorf("error should name the message index: %v", err)
	}
}

func TestUpdateRequestApply(t *testing.T) {
	desc := "old"
	c := Conversation{Title: "t", Description: &desc, Tags: []string{"x"}}
	title := " renamed "
	blank := " "
	tags := []string{"y", "y", "z"}
	req := UpdateRequest{Title: &title, Description: &blank, Tags: &tags}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	req.Apply(&c)

	if c.Title != "renamed" {
		t.Errorf("title = %q", c.Title)
	}
	if c.Description != nil {
		t.Errorf("blank description should clear, got %q", *c.Description)
	}
	if strings.Join(c.Tags, ",") != "y,z" {
		t.Errorf("tags = %v", c.Tags)
	}
}

func TestToolCallInputNormalize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantArgs string
		wantType string
		wantID   string
	}{
		{
			name:     "string arguments kept verbatim",
			body:     `{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\": \"Paris\"}"}}`,
			wantArgs: `{"city": "Paris"}`,
			wantType: "function",
			wantID:   "call_1",
		},
		{
			name:     "object arguments compacted",
			body:     `{"id":"call_2","function":{"name":"get_weather","arguments":{ "city" : "Oslo" }}}`,
			wantArgs: `{"city":"Oslo"}`,
			wantType: "function",
			wantID:   "call_2",
		},
		{
			name:     "missing arguments",
			body:     `{"id":"call_3","function":{"name":"ping"}}`,
			wantArgs: `{}`,
			wantType: "function",
			wantID:   "call_3",
		},
		{
			name:     "null arguments",
			body:     `{"id":"call_4","type":"custom","function":{"name":"ping","arguments":null}}`,
			wantArgs: `{}`,
			wantType: "custom",
			wantID:   "call_4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in ToolCallInput
			if err := json.Unmarshal([]byte(tt.body), &in); err != nil {
				t.Fatal(err)
			}
			tc, err := in.Normalize()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.FunctionArguments != tt.wantArgs {
				t.Errorf("arguments = %q, want %q", tc.FunctionArguments, tt.wantArgs)
			}
			if tc.Type != tt.wantType {
				t.Errorf("type = %q, want %q", tc.Type, tt.wantType)
			}
			if tc.CallID != tt.wantID {
				t.Errorf("call id = %q, want %q", tc.CallID, tt.wantID)
			}
		})
	}
}

func TestToolCallInputNormalizeGeneratesID(t *testing.T) {
	in := ToolCallInput{Function: FunctionInput{Name: "lookup"}}
	tc, err := in.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(tc.CallID, "call_") || len(tc.CallID) <= len("call_") {
		t.Errorf("generated call id = %q", tc.CallID)
	}
}

func TestToolCallInputNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   ToolCallInput
	}{
		{"missing name", ToolCallInput{Function: FunctionInput{Arguments: json.RawMessage(`{}`)}}},
		{"invalid arguments", ToolCallInput{Function: FunctionInput{Name: "f", Arguments: json.RawMessage(`{oops`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.in.Normalize(); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateMessageRequestValidate(t *testing.T) {
	ok := CreateMessageRequest{Role: RoleAssistant, ToolCalls: []ToolCallInput{{Function: FunctionInput{Name: "f"}}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := CreateMessageRequest{Role: RoleAssistant, ToolCalls: []ToolCallInput{{}}}
	err := bad.Validate()
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "tool_calls[0]") {
		t.Errorf("error should name the tool call index: %v", err)
	}
}

func TestNormalizeToolCallsNeverNil(t *testing.T) {
	out, err := NormalizeToolCalls(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", out)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/dataset"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
)

func seedExport(t *testing.T, f *fixture) *dataset.Dataset {
	t.Helper()
	ctx := context.Background()
	d, err := f.store.CreateDataset(ctx, f.aliceWS.ID, "Ds-Export.1", dataset.CreateRequest{Name: "E", Purpose: "fine-tune"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CreateTool(ctx, f.aliceWS.ID, tool.Fields{
		Name:       "get_weather",
		Parameters: ptr(`{"type":"object"}`),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CreateTool(ctx, f.aliceWS.ID, tool.Fields{Name: "broken", Parameters: ptr("{bad")}); err != nil {
		t.Fatal(err)
	}

	svc := NewConversationService(f.store, nil)
	if _, err := svc.Create(ctx, f.alice.ID, d.PublicID, conversation.CreateRequest{
		Title: "older",
		Messages: []conversation.CreateMessageRequest{
			{Role: conversation.RoleUser, Content: ptr("weather in <Paris>?")},
			{Role: conversation.RoleAssistant, ToolCalls: []conversation.ToolCallInput{{
				ID:       "call_1",
				Function: conversation.FunctionInput{Name: "get_weather", Arguments: json.RawMessage(`"{\"city\": \"Paris\"}"`)},
			}}},
			{Role: conversation.RoleTool, Content: ptr("sunny"), ToolCallID: ptr("call_1"), Name: ptr("get_weather")},
		},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, f.alice.ID, d.PublicID, conversation.CreateRequest{
		Title:    "newer",
		Messages: []conversation.CreateMessageRequest{{Role: conversation.RoleUser, Content: ptr("hi")}},
	}); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestExportService_JSONL(t *testing.T) {
	f := newFixture(t)
	d := seedExport(t, f)
	rec := &recorder{}
	svc := NewExportService(f.store, nil, rec)

	file, err := svc.Export(context.Background(), d.PublicID, "jsonl")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if file.Filename != "dataset_ds_export_1.jsonl" {
		t.Errorf("filename = %q", file.Filename)
	}
	if file.ContentType != "application/jsonl" {
		t.Errorf("content type = %q", file.ContentType)
	}
	if file.Records != 2 {
		t.Errorf("records = %d", file.Records)
	}

	lines := strings.Split(string(file.Body), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), file.Body)
	}
	if !strings.Contains(lines[0], `"content":"hi"`) {
		t.Errorf("newest conversation should come first: %s", lines[0])
	}

	var rec0 struct {
		Messages []map[string]json.RawMessage `json:"messages"`
		Tools    []struct {
			Type     string `json:"type"`
			Function struct {
				Name       string          `json:"name"`
				Parameters json.RawMessage `json:"parameters"`
			} `json:"function"`
		} `json:"tools"`
		Parallel *bool `json:"parallel_tool_calls"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec0); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if rec0.Parallel == nil || *rec0.Parallel {
		t.Error("parallel_tool_calls should be false")
	}
	if len(rec0.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(rec0.Tools))
	}
	for _, tl := range rec0.Tools {
		switch tl.Function.Name {
		case "broken":
			if string(tl.Function.Parameters) != "{}" {
				t.Errorf("invalid parameters should export as {}, got %s", tl.Function.Parameters)
			}
		case "get_weather":
			if string(tl.Function.Parameters) != `{"type":"object"}` {
				t.Errorf("parameters = %s", tl.Function.Parameters)
			}
		}
	}
	if len(rec0.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(rec0.Messages))
	}
	if _, ok := rec0.Messages[0]["tool_call_id"]; ok {
		t.Error("user message must not carry tool_call_id")
	}
	if string(rec0.Messages[1]["content"]) != "null" {
		t.Errorf("assistant content = %s, want null", rec0.Messages[1]["content"])
	}
	if !strings.Contains(lines[1], `"arguments":"{\"city\": \"Paris\"}"`) {
		t.Errorf("arguments not exported verbatim: %s", lines[1])
	}
	if !strings.Contains(lines[1], "<Paris>") {
		t.Errorf("html should not be escaped: %s", lines[1])
	}
	if string(rec0.Messages[2]["tool_call_id"]) != `"call_1"` {
		t.Errorf("tool_call_id = %s", rec0.Messages[2]["tool_call_id"])
	}

	got, _ := f.store.GetDataset(context.Background(), d.ID)
	if got.ExportCount != 1 || got.LastExportAt == nil {
		t.Errorf("export not stamped: count=%d last=%v", got.ExportCount, got.LastExportAt)
	}
	if ev := rec.last(t); ev.Type != event.TypeDatasetExported || ev.OwnerID != f.alice.ID {
		t.Errorf("event = %+v", ev)
	}
}

func TestExportService_JSONDefaultAndEmpty(t *testing.T) {
	f := newFixture(t)
	d, err := f.store.CreateDataset(context.Background(), f.aliceWS.ID, "empty", dataset.CreateRequest{Name: "E", Purpose: "fine-tune"})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewExportService(f.store, nil, nil)

	file, err := svc.Export(context.Background(), d.ID, "")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(file.Body) != "[]" {
		t.Errorf("body = %q, want []", file.Body)
	}
	if file.Filename != "dataset_empty.json" || file.ContentType != "application/json" {
		t.Errorf("got %s %s", file.Filename, file.ContentType)
	}

	file, err = svc.Export(context.Background(), d.ID, "jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if len(file.Body) != 0 {
		t.Errorf("empty jsonl body = %q", file.Body)
	}
}

func TestExportService_Errors(t *testing.T) {
	f := newFixture(t)
	d := seedExport(t, f)
	ctx := context.Background()

	t.Run("bad format checked before store", func(t *testing.T) {
		before := f.store.CallCount("GetDataset")
		_, err := NewExportService(f.store, nil, nil).Export(ctx, d.PublicID, "xml")
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if f.store.CallCount("GetDataset") != before {
			t.Error("store was queried for an invalid format")
		}
	})

	t.Run("missing dataset", func(t *testing.T) {
		_, err := NewExportService(f.store, nil, nil).Export(ctx, "nope", "json")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("stamp failure does not fail export", func(t *testing.T) {
		f.store.RecordExportErr = errors.New("db down")
		defer func() { f.store.RecordExportErr = nil }()
		if _, err := NewExportService(f.store, nil, nil).Export(ctx, d.PublicID, "json"); err != nil {
			t.Fatalf("Export: %v", err)
		}
	})

	t.Run("load failure", func(t *testing.T) {
		f.store.ListConversationsErr = errors.New("db down")
		defer func() { f.store.ListConversationsErr = nil }()
		_, err := NewExportService(f.store, nil, nil).Export(ctx, d.PublicID, "json")
		if err == nil {
			t.Fatal("expected an error")
		}
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			t.Errorf("load failure should be unclassified, got %v", err)
		}
	})
}

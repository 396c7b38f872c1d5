package storage

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestMessageLogAppendList(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	log := NewMessageLog(layout)

	user := models.Message{ID: "m1", Role: models.RoleUser, Content: "what is kotae?", Timestamp: 1700000000000}
	assistant := models.Message{
		ID:         "m2",
		Role:       models.RoleAssistant,
		Content:    "an answer",
		Timestamp:  1700000001000,
		SourceType: models.SourceDocument,
		UsedRAG:    models.BoolPtr(true),
	}
	if err := log.Append("conv1", user); err != nil {
		t.Fatal(err)
	}
	if err := log.Append("conv1", assistant); err != nil {
		t.Fatal(err)
	}

	got, err := log.List("conv1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("append order not preserved: %+v", got)
	}
	if got[1].UsedRAG == nil || !*got[1].UsedRAG {
		t.Error("usedRag attribute lost")
	}
	if got[0].UsedRAG != nil {
		t.Error("usedRag should be absent on user messages")
	}
	if got[1].SourceType != models.SourceDocument {
		t.Errorf("sourceType lost: %+v", got[1])
	}
}

func TestMessageLogFileShape(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	log := NewMessageLog(layout)
	if err := log.Append("c1", models.Message{ID: "m1", Role: models.RoleUser, Content: "hello & <goodbye>"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(layout.MessageLogPath("c1"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "<?xml") {
		t.Error("missing XML declaration")
	}
	if !strings.Contains(text, "<messages>") || !strings.Contains(text, `<message id="m1" role="user"`) {
		t.Errorf("unexpected document shape:\n%s", text)
	}
	if !strings.Contains(text, "<content>hello &amp; &lt;goodbye&gt;</content>") {
		t.Error("content must be a nested element with escaped text")
	}
}

func TestMessageLogReadsLegacyFile(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	legacy := `<?xml version="1.0" encoding="UTF-8"?>
<messages>
  <message id="m1" role="user" timestamp="1700000000000">
    <content>what is kotae?</content>
  </message>
  <message id="m2" role="assistant" timestamp="1700000001000" sourceType="document" usedRag="true">
    <content>an answer</content>
  </message>
</messages>`
	if err := os.MkdirAll(layout.LogsDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.MessageLogPath("c1"), []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	log := NewMessageLog(layout)
	got, err := log.List("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "what is kotae?" || got[1].Content != "an answer" {
		t.Errorf("content lost on legacy file: %+v", got)
	}
	if got[1].UsedRAG == nil || !*got[1].UsedRAG {
		t.Error("usedRag attribute lost on legacy file")
	}
}

func TestMessageLogMissingFile(t *testing.T) {
	log := NewMessageLog(Layout{Root: t.TempDir()})
	got, err := log.List("never-written")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty conversation, got %+v", got)
	}
}

func TestMessageLogConcurrentAppends(t *testing.T) {
	log := NewMessageLog(Layout{Root: t.TempDir()})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := models.Message{ID: string(rune('a' + i)), Role: models.RoleUser, Content: "x"}
			if err := log.Append("conv", msg); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	got, err := log.List("conv")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("expected 10 messages, got %d", len(got))
	}
}

func TestMessageLogClear(t *testing.T) {
	log := NewMessageLog(Layout{Root: t.TempDir()})
	if err := log.Append("c", models.Message{ID: "m", Role: models.RoleUser}); err != nil {
		t.Fatal(err)
	}
	if err := log.Clear("c"); err != nil {
		t.Fatal(err)
	}
	got, err := log.List("c")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty log after clear, got %d", len(got))
	}
	if err := log.Clear("c"); err != nil {
		t.Errorf("clearing a missing log should succeed, got %v", err)
	}
}

func TestDebugLogRoundTrip(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	log := NewDebugLog(layout)

	req := models.DebugEntry{
		ID:        "d1",
		Type:      models.DebugRequest,
		Content:   map[string]interface{}{"prompt": "question", "topK": 4},
		Timestamp: 1700000000000,
	}
	if err := log.Append("conv1", req); err != nil {
		t.Fatal(err)
	}

	got, err := log.List("conv1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type != models.DebugRequest {
		t.Fatalf("unexpected entries: %+v", got)
	}
	raw, ok := got[0].Content.(json.RawMessage)
	if !ok {
		t.Fatalf("expected raw JSON content, got %T", got[0].Content)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["prompt"] != "question" {
		t.Errorf("payload lost: %v", payload)
	}

	data, err := os.ReadFile(layout.DebugLogPath("conv1"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<debugMessages>") {
		t.Errorf("unexpected document shape:\n%s", data)
	}
}

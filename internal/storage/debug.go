package storage

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// xmlDebugMessage wraps one trace entry. The JSON-serialized payload lives
// in a nested content element, the same shape the message log uses.
type xmlDebugMessage struct {
	XMLName   xml.Name `xml:"debugMessage"`
	ID        string   `xml:"id,attr"`
	Type      string   `xml:"type,attr"`
	Timestamp int64    `xml:"timestamp,attr"`
	Content   string   `xml:"content"`
}

type xmlDebugMessages struct {
	XMLName  xml.Name          `xml:"debugMessages"`
	Messages []xmlDebugMessage `xml:"debugMessage"`
}

// DebugLog persists provider request/response traces, one XML file per
// conversation alongside the message log. Failures to record a trace should
// never fail the request being traced, so callers typically log and drop
// errors from Append.
type DebugLog struct {
	layout Layout

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDebugLog returns a debug trace log over the given files layout.
func NewDebugLog(layout Layout) *DebugLog {
	return &DebugLog{layout: layout, locks: map[string]*sync.Mutex{}}
}

func (l *DebugLog) lock(conversationID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[conversationID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[conversationID] = m
	}
	return m
}

// List returns all trace entries of a conversation in append order. Content
// is returned as raw JSON.
func (l *DebugLog) List(conversationID string) ([]models.DebugEntry, error) {
	m := l.lock(conversationID)
	m.Lock()
	defer m.Unlock()
	doc, err := l.read(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]models.DebugEntry, len(doc.Messages))
	for i, e := range doc.Messages {
		out[i] = models.DebugEntry{
			ID:        e.ID,
			Type:      e.Type,
			Content:   json.RawMessage(e.Content),
			Timestamp: e.Timestamp,
		}
	}
	return out, nil
}

func (l *DebugLog) read(conversationID string) (xmlDebugMessages, error) {
	var doc xmlDebugMessages
	data, err := os.ReadFile(l.layout.DebugLogPath(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("read debug log: %w", err)
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse debug log %s: %w", conversationID, err)
	}
	return doc, nil
}

// Append adds trace entries, serializing each entry's content as JSON.
func (l *DebugLog) Append(conversationID string, entries ...models.DebugEntry) error {
	if len(entries) == 0 {
		return nil
	}
	m := l.lock(conversationID)
	m.Lock()
	defer m.Unlock()

	doc, err := l.read(conversationID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		payload, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("encode debug payload: %w", err)
		}
		doc.Messages = append(doc.Messages, xmlDebugMessage{
			ID:        e.ID,
			Type:      e.Type,
			Timestamp: e.Timestamp,
			Content:   string(payload),
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode debug log: %w", err)
	}
	path := l.layout.DebugLogPath(conversationID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("write debug log: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(xmlHeader), body...), 0644); err != nil {
		return fmt.Errorf("write debug log: %w", err)
	}
	return nil
}

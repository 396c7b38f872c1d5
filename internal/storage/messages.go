package storage

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

const xmlHeader = xml.Header

// xmlMessage mirrors models.Message in the conversation log schema. Content
// lives in a nested content element, matching log files written by earlier
// versions of the application.
type xmlMessage struct {
	XMLName    xml.Name `xml:"message"`
	ID         string   `xml:"id,attr"`
	Role       string   `xml:"role,attr"`
	Timestamp  int64    `xml:"timestamp,attr"`
	SourceType string   `xml:"sourceType,attr,omitempty"`
	SourceURL  string   `xml:"sourceUrl,attr,omitempty"`
	UsedRAG    *bool    `xml:"usedRag,attr,omitempty"`
	Content    string   `xml:"content"`
}

type xmlMessages struct {
	XMLName  xml.Name     `xml:"messages"`
	Messages []xmlMessage `xml:"message"`
}

// MessageLog persists conversation messages, one XML file per conversation.
// Appends are read-modify-write cycles serialized per conversation, so
// concurrent asks against the same conversation cannot drop each other's
// messages.
type MessageLog struct {
	layout Layout

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMessageLog returns a message log over the given files layout.
func NewMessageLog(layout Layout) *MessageLog {
	return &MessageLog{layout: layout, locks: map[string]*sync.Mutex{}}
}

func (l *MessageLog) lock(conversationID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[conversationID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[conversationID] = m
	}
	return m
}

// List returns all messages of a conversation in append order. A missing
// log file is an empty conversation, not an error.
func (l *MessageLog) List(conversationID string) ([]models.Message, error) {
	m := l.lock(conversationID)
	m.Lock()
	defer m.Unlock()
	return l.read(conversationID)
}

func (l *MessageLog) read(conversationID string) ([]models.Message, error) {
	data, err := os.ReadFile(l.layout.MessageLogPath(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read message log: %w", err)
	}
	var doc xmlMessages
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse message log %s: %w", conversationID, err)
	}
	out := make([]models.Message, len(doc.Messages))
	for i, msg := range doc.Messages {
		out[i] = models.Message{
			ID:         msg.ID,
			Role:       msg.Role,
			Content:    msg.Content,
			Timestamp:  msg.Timestamp,
			SourceType: msg.SourceType,
			SourceURL:  msg.SourceURL,
			UsedRAG:    msg.UsedRAG,
		}
	}
	return out, nil
}

// Append adds messages to the end of a conversation's log.
func (l *MessageLog) Append(conversationID string, messages ...models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	m := l.lock(conversationID)
	m.Lock()
	defer m.Unlock()

	existing, err := l.read(conversationID)
	if err != nil {
		return err
	}
	doc := xmlMessages{Messages: make([]xmlMessage, 0, len(existing)+len(messages))}
	for _, msg := range append(existing, messages...) {
		doc.Messages = append(doc.Messages, xmlMessage{
			ID:         msg.ID,
			Role:       msg.Role,
			Timestamp:  msg.Timestamp,
			SourceType: msg.SourceType,
			SourceURL:  msg.SourceURL,
			UsedRAG:    msg.UsedRAG,
			Content:    msg.Content,
		})
	}
	return l.write(conversationID, doc)
}

// Clear removes a conversation's message log.
func (l *MessageLog) Clear(conversationID string) error {
	m := l.lock(conversationID)
	m.Lock()
	defer m.Unlock()
	err := os.Remove(l.layout.MessageLogPath(conversationID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear message log: %w", err)
	}
	return nil
}

func (l *MessageLog) write(conversationID string, doc xmlMessages) error {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode message log: %w", err)
	}
	path := l.layout.MessageLogPath(conversationID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("write message log: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(xmlHeader), body...), 0644); err != nil {
		return fmt.Errorf("write message log: %w", err)
	}
	return nil
}
